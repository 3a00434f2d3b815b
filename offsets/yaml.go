package offsets

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/meigma/rangefetch/internal/fragtype"
)

// ParseYAML parses a YAML offset table. Mapping order is preserved.
func ParseYAML(data []byte) (*Table, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse offset table: %v", fragtype.ErrConfig, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: offset table is empty", fragtype.ErrConfig)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: offset table line %d: expected a mapping", fragtype.ErrConfig, root.Line)
	}

	b := newTableBuilder()
	for i := 0; i+1 < len(root.Content); i += 2 {
		id, archive := root.Content[i].Value, root.Content[i+1]
		if err := b.startArchive(id); err != nil {
			return nil, err
		}
		if archive.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: archive %s line %d: expected a mapping", fragtype.ErrConfig, id, archive.Line)
		}
		for j := 0; j+1 < len(archive.Content); j += 2 {
			name, value := archive.Content[j].Value, archive.Content[j+1]
			var entry offsetEntry
			if err := value.Decode(&entry); err != nil {
				return nil, fmt.Errorf("%w: %s/%s: %v", fragtype.ErrConfig, id, name, err)
			}
			if err := b.addFragment(name, entry); err != nil {
				return nil, err
			}
		}
	}
	return b.finish()
}
