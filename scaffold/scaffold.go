// Package scaffold writes the starter files of a new pubfront site: a
// YAML configuration, an example env file and the public assets directory.
package scaffold

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Templates contains all scaffold template files.
// Files use Go text/template syntax and have a .tmpl suffix.
//
//go:embed all:templates
var Templates embed.FS

// Data holds the variables passed to every scaffold template.
type Data struct {
	ProjectName string
	SiteName    string
	APIEndpoint string
}

// NewData derives template data from a project directory name.
func NewData(dir, endpoint string) Data {
	name := filepath.Base(filepath.Clean(dir))
	return Data{
		ProjectName: name,
		SiteName:    toTitle(name),
		APIEndpoint: endpoint,
	}
}

type plannedFile struct {
	src  string
	out  string
	tmpl *template.Template
}

// Write renders the templates into dir and returns the files it created.
// Existing files are an error unless force is set; in that case nothing
// is written.
func Write(dir string, data Data, force bool) ([]string, error) {
	dirs, files, err := plan(dir)
	if err != nil {
		return nil, err
	}
	if !force {
		for _, f := range files {
			if _, err := os.Stat(f.out); err == nil {
				return nil, fmt.Errorf("%s already exists", f.out)
			}
		}
	}

	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, err
		}
	}
	var created []string
	for _, f := range files {
		if err := render(f, data); err != nil {
			return created, err
		}
		slog.Debug("scaffold file created", "path", f.out)
		created = append(created, f.out)
	}
	return created, nil
}

// plan parses every template and maps it to its path under dir.
func plan(dir string) (dirs []string, files []plannedFile, err error) {
	const root = "templates"
	err = fs.WalkDir(Templates, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		outPath := strings.TrimSuffix(filepath.Join(dir, relPath), ".tmpl")
		if filepath.Base(outPath) == "dotenv" {
			outPath = filepath.Join(filepath.Dir(outPath), ".env.example")
		}

		if d.IsDir() {
			dirs = append(dirs, outPath)
			return nil
		}
		content, err := Templates.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		tmpl, err := template.New(filepath.Base(path)).Parse(string(content))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", path, err)
		}
		files = append(files, plannedFile{src: path, out: outPath, tmpl: tmpl})
		return nil
	})
	return dirs, files, err
}

func render(f plannedFile, data Data) (err error) {
	out, err := os.Create(f.out)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.out, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", f.out, cerr)
		}
	}()
	if err := f.tmpl.Execute(out, data); err != nil {
		return fmt.Errorf("execute template %s: %w", f.src, err)
	}
	return nil
}

// toTitle converts a hyphenated name to title case.
// e.g. "meu-blog" -> "Meu Blog"
func toTitle(s string) string {
	return cases.Title(language.BrazilianPortuguese).String(strings.ReplaceAll(s, "-", " "))
}
