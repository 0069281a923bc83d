package hotspot

import (
	"encoding/json"
	"fmt"
	"strings"

	"hotspotter/internal/scene"

	"github.com/gosimple/slug"
)

// Annotation keys stored on hotspot nodes.
const (
	FlagKey       = "isHotspot"
	AnnotationKey = "hotspot"

	// NamePrefix is prepended to the display name of every hotspot node.
	NamePrefix = "hotspot"
)

// Annotation is the logical identity carried by a hotspot node.
type Annotation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewAnnotation derives the identity for a display name.
func NewAnnotation(name string) Annotation {
	return Annotation{ID: Slug(name), Name: name}
}

// Slug turns a name into a lowercase, hyphen-delimited identifier.
func Slug(name string) string {
	return slug.Make(name)
}

// DisplayName is the node name used for a hotspot called name.
func DisplayName(name string) string {
	return NamePrefix + "/" + name
}

// ReadAnnotation decodes the annotation of n. A missing, undecodable or
// nameless payload is reported as ErrMalformedAnnotation.
func ReadAnnotation(t Tree, n *scene.Node) (Annotation, error) {
	raw := t.PluginData(n, AnnotationKey)
	if strings.TrimSpace(raw) == "" {
		return Annotation{}, fmt.Errorf("%w: node %s has no %q data", ErrMalformedAnnotation, n.ID, AnnotationKey)
	}
	var a Annotation
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Annotation{}, fmt.Errorf("%w: node %s: %v", ErrMalformedAnnotation, n.ID, err)
	}
	if a.Name == "" {
		return Annotation{}, fmt.Errorf("%w: node %s: empty name", ErrMalformedAnnotation, n.ID)
	}
	return a, nil
}

// Writer is the part of the host needed to tag nodes.
type Writer interface {
	SetPluginData(n *scene.Node, key, value string)
	SetName(n *scene.Node, name string)
}

// Tag marks n as a hotspot called name.
func Tag(w Writer, n *scene.Node, name string) {
	w.SetPluginData(n, FlagKey, "true")
	writeIdentity(w, n, name)
}

func writeIdentity(w Writer, n *scene.Node, name string) {
	payload, _ := json.Marshal(NewAnnotation(name))
	w.SetPluginData(n, AnnotationKey, string(payload))
	w.SetName(n, DisplayName(name))
}
