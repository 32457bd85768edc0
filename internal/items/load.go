package items

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile формат YAML-файла каталога
type catalogFile struct {
	Items []Item `yaml:"items"`
}

// Parse разбирает каталог из YAML
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("разбор каталога: %w", err)
	}
	if len(f.Items) == 0 {
		return nil, fmt.Errorf("каталог пуст")
	}
	return New(f.Items)
}

// LoadFile читает каталог из YAML-файла. Пустой путь означает Default().
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение каталога %s: %w", path, err)
	}
	return Parse(data)
}
