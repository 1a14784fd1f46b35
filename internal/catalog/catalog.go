// Package catalog assembles the constraint groups known to a run: the
// built-in groups plus any declared in CUE files.
//
// A CUE catalog declares groups under the top-level "group" field:
//
//	group: DataHandling: {
//		doc: "Controls for handling customer data."
//		members: {
//			encrypt_at_rest: "Customer data is encrypted at rest"
//			redact_logs:     "Logs never contain customer data"
//		}
//	}
//
// Member order follows field order in the source.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/honors/constraint"
	"github.com/roach88/honors/constraint/iso27001"
)

// Error codes for LoadError.
const (
	ErrCodeNotFound    = "E101" // Catalog path not found
	ErrCodeNoFiles     = "E102" // No CUE files found
	ErrCodeLoadFailed  = "E103" // CUE load failed
	ErrCodeBuildFailed = "E104" // CUE build failed
	ErrCodeBadGroup    = "E105" // Group definition is malformed
	ErrCodeConflict    = "E106" // Group name already defined differently
)

// LoadError is a catalog loading failure, with a CUE position when one is
// available.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Builtin returns the groups that ship with honors.
func Builtin() []constraint.Group {
	return []constraint.Group{iso27001.Controls}
}

// New returns a catalog with the built-in groups and, if dir is not empty,
// the groups declared in dir.
func New(dir string) (*constraint.Catalog, error) {
	c, err := constraint.NewCatalog(Builtin()...)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return c, nil
	}
	groups, err := Load(dir)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if err := c.Add(g); err != nil {
			return nil, &LoadError{Code: ErrCodeConflict, Message: err.Error()}
		}
	}
	return c, nil
}

// Load reads every group declared by the CUE package in dir. Groups are
// returned in source order.
func Load(dir string) ([]*constraint.Enum, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog directory not found: %s", dir)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil || len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Validate(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return Groups(value)
}

// Groups extracts the groups declared under value's "group" field.
func Groups(value cue.Value) ([]*constraint.Enum, error) {
	groupsVal := value.LookupPath(cue.ParsePath("group"))
	if !groupsVal.Exists() {
		return nil, nil
	}
	iter, err := groupsVal.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeBadGroup, Message: fmt.Sprintf("iterating groups: %v", err), Pos: groupsVal.Pos()}
	}

	var out []*constraint.Enum
	for iter.Next() {
		g, err := compileGroup(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func compileGroup(name string, v cue.Value) (*constraint.Enum, error) {
	bad := func(pos token.Pos, format string, args ...any) error {
		return &LoadError{Code: ErrCodeBadGroup, Message: fmt.Sprintf("group %s: ", name) + fmt.Sprintf(format, args...), Pos: pos}
	}

	var doc string
	if d := v.LookupPath(cue.ParsePath("doc")); d.Exists() {
		s, err := d.String()
		if err != nil {
			return nil, bad(d.Pos(), "doc must be a string")
		}
		doc = s
	}

	membersVal := v.LookupPath(cue.ParsePath("members"))
	if !membersVal.Exists() {
		return nil, bad(v.Pos(), "members is required")
	}
	iter, err := membersVal.Fields()
	if err != nil {
		return nil, bad(membersVal.Pos(), "members must be a struct")
	}

	var members []constraint.Member
	for iter.Next() {
		if strings.TrimSpace(iter.Selector().Unquoted()) == "" {
			return nil, bad(iter.Value().Pos(), "member names must not be empty")
		}
		s, err := iter.Value().String()
		if err != nil {
			return nil, bad(iter.Value().Pos(), "member %s must be a string", iter.Selector().Unquoted())
		}
		members = append(members, constraint.Member{Name: iter.Selector().Unquoted(), Value: s})
	}
	if len(members) == 0 {
		return nil, bad(membersVal.Pos(), "at least one member is required")
	}
	g, err := constraint.DefineEnum(name, doc, members...)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeBadGroup, Message: err.Error(), Pos: v.Pos()}
	}
	return g, nil
}
