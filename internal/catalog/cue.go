package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"

	"github.com/roach88/onboarding/internal/model"
)

// CUE catalogs key templates by flag:
//
//	default: GasCard_Requested: {
//		short_code: "3"
//		task_type:  "Gas Card"
//	}
//	partitions: prod: GasCard_Requested: {...}

// templateFields maps CUE field names onto Template setters.
var templateFields = map[string]func(*model.Template, string){
	"short_code":       func(t *model.Template, v string) { t.ShortCode = v },
	"task_type":        func(t *model.Template, v string) { t.Kind = v },
	"name_prefix":      func(t *model.Template, v string) { t.NamePrefix = v },
	"assigned_to":      func(t *model.Template, v string) { t.AssignedTo = v },
	"description":      func(t *model.Template, v string) { t.Description = v },
	"to_email":         func(t *model.Template, v string) { t.ToEmail = v },
	"to_phone":         func(t *model.Template, v string) { t.ToPhone = v },
	"email_subject":    func(t *model.Template, v string) { t.EmailSubject = v },
	"message_template": func(t *model.Template, v string) { t.MessageTemplate = v },
}

// LoadCUE reads a CUE catalog from a single .cue file or from the package
// in a directory.
func LoadCUE(path string) (*Set, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		return ParseCUE(path, data)
	}

	matches, err := filepath.Glob(filepath.Join(path, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("scan catalog %s: %w", path, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", path)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return nil, fmt.Errorf("catalog %s: no CUE instances loaded", path)
	}
	if inst := instances[0]; inst.Err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, formatCUEError(inst.Err))
	}
	v := cuecontext.New().BuildInstance(instances[0])
	return compileSet(path, v)
}

// ParseCUE compiles CUE catalog source.
func ParseCUE(source string, data []byte) (*Set, error) {
	v := cuecontext.New().CompileBytes(data, cue.Filename(source))
	return compileSet(source, v)
}

func compileSet(source string, v cue.Value) (*Set, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	var def []model.Template
	if dv := v.LookupPath(cue.ParsePath("default")); dv.Exists() {
		tpls, err := compileTemplates(dv)
		if err != nil {
			return nil, err
		}
		def = tpls
	}

	partitions := map[model.Partition][]model.Template{}
	if pv := v.LookupPath(cue.ParsePath("partitions")); pv.Exists() {
		iter, err := pv.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			tpls, err := compileTemplates(iter.Value())
			if err != nil {
				return nil, err
			}
			partitions[model.Partition(iter.Label())] = tpls
		}
	}

	return newSet(source, def, partitions)
}

// compileTemplates reads a struct of flag -> template fields.
func compileTemplates(v cue.Value) ([]model.Template, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []model.Template
	for iter.Next() {
		tpl, err := CompileTemplate(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, nil
}

// CompileTemplate parses one CUE template struct. The flag is the struct's
// label; short_code is required and every other field is an optional string.
func CompileTemplate(flag string, v cue.Value) (model.Template, error) {
	if err := v.Err(); err != nil {
		return model.Template{}, formatCUEError(err)
	}
	tpl := model.Template{Flag: flag}

	if !v.LookupPath(cue.ParsePath("short_code")).Exists() {
		return model.Template{}, &SourceError{
			Field:   flag + ".short_code",
			Message: "short_code is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := v.Fields()
	if err != nil {
		return model.Template{}, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		set, ok := templateFields[name]
		if !ok {
			return model.Template{}, &SourceError{
				Field:   flag + "." + name,
				Message: fmt.Sprintf("unknown field (allowed: %s)", allowedFields()),
				Pos:     iter.Value().Pos(),
			}
		}
		s, err := iter.Value().String()
		if err != nil {
			return model.Template{}, &SourceError{
				Field:   flag + "." + name,
				Message: "must be a string",
				Pos:     iter.Value().Pos(),
			}
		}
		set(&tpl, s)
	}
	return tpl, nil
}

func allowedFields() string {
	names := make([]string, 0, len(templateFields))
	for k := range templateFields {
		names = append(names, k)
	}
	slices.Sort(names)
	return fmt.Sprint(names)
}

// formatCUEError surfaces the first CUE error with its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	positions := errors.Positions(first)
	se := &SourceError{Field: "cue", Message: first.Error()}
	if len(positions) > 0 {
		se.Pos = positions[0]
	}
	return se
}
