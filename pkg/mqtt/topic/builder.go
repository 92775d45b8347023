package topic

import (
	"fmt"
	"strings"
)

const (
	// Wildcard is the single-level wildcard. It matches exactly one level.
	Wildcard = "+"

	// MultiWildcard matches the current level and all below it. It must be last.
	MultiWildcard = "#"

	sharePrefix = "$share"
)

// Builder constructs MQTT topic strings below a root namespace.
// Pattern: [$share/{group}/]{root}/{segment}/{identifier}
type Builder struct {
	// root is the base namespace for all topics (e.g. "fleet/v1").
	root string

	// group is set for shared subscriptions.
	group string
}

// NewBuilder creates a Builder for the given root namespace.
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.Trim(root, "/")}
}

// Root returns the namespace topics are built under.
func (b *Builder) Root() string {
	return b.root
}

// Shared returns a copy of the builder that prefixes topics with a shared
// subscription group, so that one member of the group receives each message.
func (b *Builder) Shared(group string) *Builder {
	return &Builder{root: b.root, group: group}
}

// -----------------------------------------------------------------------------
// Topic Generation Methods
// -----------------------------------------------------------------------------

// Build returns the topic for a segment and identifier.
func (b *Builder) Build(segment, id string) string {
	return b.prefix() + fmt.Sprintf("%s/%s/%s", b.root, segment, id)
}

// BuildWildcard returns the filter matching every identifier of a segment.
// Result: {root}/{segment}/+
func (b *Builder) BuildWildcard(segment string) string {
	return b.Build(segment, Wildcard)
}

// ID extracts the identifier level from a concrete topic built for segment.
// The second result is false if topic does not belong to segment.
func (b *Builder) ID(segment, topic string) (string, bool) {
	prefix := fmt.Sprintf("%s/%s/", b.root, segment)
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(topic, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// -----------------------------------------------------------------------------
// Helper Methods
// -----------------------------------------------------------------------------

func (b *Builder) prefix() string {
	if b.group == "" {
		return ""
	}
	return sharePrefix + "/" + b.group + "/"
}
