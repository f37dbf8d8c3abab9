package content

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// LoadDir loads every .json, .yaml and .yml file in dir as a pack. A missing
// directory is not an error. Files are loaded in name order and the first bad
// file aborts the load.
func (r *Repository) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read packs dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		p, err := readPack(filepath.Join(dir, name))
		if err != nil {
			return 0, err
		}
		if err := r.LoadPack(p); err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		log.Debug().Str("pack", p.ID).Int("cards", len(p.Cards)).Str("file", name).Msg("loaded content pack")
	}
	return len(names), nil
}

// readPack decodes a pack file. JSON is a subset of YAML, so one decoder
// handles both.
func readPack(path string) (Pack, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pack{}, fmt.Errorf("read pack: %w", err)
	}
	var p Pack
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Pack{}, fmt.Errorf("decode pack %s: %w", filepath.Base(path), err)
	}
	return p, nil
}
