package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

const templateExt = ".pptx"

var templateIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// TemplateStore serves slide templates stored as <dir>/<id>.pptx.
type TemplateStore struct {
	dir string
}

func NewTemplateStore(dir string) *TemplateStore {
	return &TemplateStore{dir: dir}
}

// Load returns the template bytes for id, or nil when no such template
// exists. Ids that could escape the directory are treated as missing.
func (s *TemplateStore) Load(id string) ([]byte, error) {
	if s == nil || s.dir == "" || id == "" {
		return nil, nil
	}
	if !templateIDRe.MatchString(id) {
		log.Warn().Str("template", id).Msg("Ignoring invalid template id")
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(s.dir, id+templateExt))
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("template", id).Msg("Template not found, using blank deck")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template %q: %w", id, err)
	}
	return data, nil
}

// List returns the ids of the available templates in name order.
func (s *TemplateStore) List() ([]string, error) {
	if s == nil || s.dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), templateExt) {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if templateIDRe.MatchString(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
