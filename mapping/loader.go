package mapping

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// File is a parsed mapping file.
//
//	namespace: users
//	statements:
//	  - id: selectById
//	    kind: select
//	    sql: SELECT id, name FROM users WHERE id = #{id}
//	    timeout: 2s
//	mappers:
//	  - methods:
//	      selectById: select-one
type File struct {
	Namespace  string          `koanf:"namespace" validate:"required"`
	Statements []StatementSpec `koanf:"statements" validate:"dive"`
	Mappers    []MapperSpec    `koanf:"mappers" validate:"dive"`
}

// StatementSpec is one statement entry of a mapping file.
type StatementSpec struct {
	ID      string        `koanf:"id" validate:"required,excludes=."`
	Kind    string        `koanf:"kind" validate:"required,oneof=select insert update delete"`
	SQL     string        `koanf:"sql" validate:"required"`
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`
}

// MapperSpec is one mapper entry of a mapping file. An empty name means the file namespace.
type MapperSpec struct {
	Name    string            `koanf:"name"`
	Methods map[string]string `koanf:"methods" validate:"required,min=1,dive,keys,required,endkeys,oneof=select-one select-list update one list"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadBytes parses an in-memory mapping document.
func LoadBytes(data []byte) (*File, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file: %w", err)
	}
	return decode(k, "<bytes>")
}

// LoadFile parses a mapping file from disk.
func LoadFile(path string) (*File, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load mapping file %s: %w", path, err)
	}
	return decode(k, path)
}

func decode(k *koanf.Koanf, source string) (*File, error) {
	var f File
	if err := k.Unmarshal("", &f); err != nil {
		return nil, fmt.Errorf("failed to decode mapping file %s: %w", source, err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid mapping file %s: %w", source, describe(err))
	}
	return &f, nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Register adds the statements and then the mappers of f to r.
func (f *File) Register(r *Registry) error {
	statements := make([]*MappedStatement, 0, len(f.Statements))
	for _, s := range f.Statements {
		kind, err := ParseKind(s.Kind)
		if err != nil {
			return err
		}
		statements = append(statements, NewMappedStatement(f.Namespace, s.ID, kind, s.SQL).WithTimeout(s.Timeout))
	}
	if err := r.Add(statements...); err != nil {
		return err
	}

	for _, m := range f.Mappers {
		def := MapperDefinition{Name: m.Name, Methods: make(map[string]MethodKind, len(m.Methods))}
		if def.Name == "" {
			def.Name = f.Namespace
		}
		for method, kind := range m.Methods {
			mk, err := ParseMethodKind(kind)
			if err != nil {
				return fmt.Errorf("mapper %s method %s: %w", def.Name, method, err)
			}
			def.Methods[method] = mk
		}
		if err := r.AddMapper(def); err != nil {
			return err
		}
	}
	return nil
}

// LoadFiles loads every path and registers it into r.
func LoadFiles(r *Registry, paths ...string) error {
	for _, path := range paths {
		f, err := LoadFile(path)
		if err != nil {
			return err
		}
		if err := f.Register(r); err != nil {
			return fmt.Errorf("failed to register %s: %w", path, err)
		}
	}
	return nil
}
