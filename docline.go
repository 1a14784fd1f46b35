package honors

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"sync"
)

// docs caches parsed test files for the life of the test binary.
var docs = &docCache{files: make(map[string]*fileDocs)}

type docCache struct {
	mu    sync.Mutex
	files map[string]*fileDocs
}

// fileDocs holds the doc lines of a file's top-level functions.
type fileDocs struct {
	once   sync.Once
	byName map[string]string
	funcs  []funcSpan
}

type funcSpan struct {
	start, end int
	doc        string
}

// lookup returns the doc line of the test named by testName, falling back
// to the function enclosing file:line. Subtest names resolve to their
// top-level test.
func (c *docCache) lookup(file string, line int, testName string) string {
	fd := c.file(file)
	root, _, _ := strings.Cut(testName, "/")
	if doc, ok := fd.byName[root]; ok {
		return doc
	}
	for _, f := range fd.funcs {
		if line >= f.start && line <= f.end {
			return f.doc
		}
	}
	return ""
}

func (c *docCache) file(path string) *fileDocs {
	c.mu.Lock()
	fd, ok := c.files[path]
	if !ok {
		fd = &fileDocs{}
		c.files[path] = fd
	}
	c.mu.Unlock()

	fd.once.Do(func() { fd.parse(path) })
	return fd
}

// parse reads path. A file that cannot be parsed yields no docs.
func (fd *fileDocs) parse(path string) {
	fd.byName = make(map[string]string)
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, nil, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return
	}
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil {
			continue
		}
		doc := firstLine(fn.Doc.Text())
		fd.byName[fn.Name.Name] = doc
		fd.funcs = append(fd.funcs, funcSpan{
			start: fset.Position(fn.Pos()).Line,
			end:   fset.Position(fn.End()).Line,
			doc:   doc,
		})
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
