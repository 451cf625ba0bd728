package cmod

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
)

// SubModule is one nested module inside a CMOD tree, one level deep.
type SubModule struct {
	Name        string `json:"name"`
	SrcDir      string `json:"srcDir"`
	InfoDir     string `json:"infoDir"`
	MainFile    string `json:"mainFile,omitempty"`
	InfoFile    string `json:"infoFile"`
	HasMainFile bool   `json:"hasMainFile"`
}

// Structure describes a CMOD module tree rooted at a directory or an
// archive root; both use the identical layout.
type Structure struct {
	ModuleName string      `json:"moduleName"`
	Root       string      `json:"root"`
	SrcDir     string      `json:"srcDir"`
	InfoDir    string      `json:"infoDir"`
	MainFile   string      `json:"mainFile,omitempty"`
	InfoFile   string      `json:"infoFile"`
	SubModules []SubModule `json:"subModules,omitempty"`
	ExtraFiles []string    `json:"extraFiles,omitempty"`
	Info       Info        `json:"info"`
}

var validModuleName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Analyze reads a module directory tree from fsys and derives its
// structure. The fs root is the module directory itself.
func Analyze(fsys fs.FS, moduleName string) (*Structure, error) {
	if !validModuleName.MatchString(moduleName) {
		return nil, fmt.Errorf("invalid module name %q", moduleName)
	}
	s := &Structure{
		ModuleName: moduleName,
		Root:       ".",
		SrcDir:     "src",
		InfoDir:    "info",
		InfoFile:   path.Join("info", moduleName+".chtl"),
	}
	main := path.Join("src", moduleName+".chtl")
	if fileExists(fsys, main) {
		s.MainFile = main
	}

	srcEntries, err := fs.ReadDir(fsys, "src")
	if err == nil {
		for _, e := range srcEntries {
			if !e.IsDir() {
				continue
			}
			sub := SubModule{
				Name:     e.Name(),
				SrcDir:   path.Join("src", e.Name(), "src"),
				InfoDir:  path.Join("src", e.Name(), "info"),
				InfoFile: path.Join("src", e.Name(), "info", e.Name()+".chtl"),
			}
			subMain := path.Join("src", e.Name(), "src", e.Name()+".chtl")
			if fileExists(fsys, subMain) {
				sub.MainFile = subMain
				sub.HasMainFile = true
			}
			s.SubModules = append(s.SubModules, sub)
		}
	}

	rootEntries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	for _, e := range rootEntries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".chtl") {
			s.ExtraFiles = append(s.ExtraFiles, e.Name())
		}
	}

	if infoSrc, err := fs.ReadFile(fsys, s.InfoFile); err == nil {
		info, perr := ParseInfo(string(infoSrc))
		if perr != nil {
			return s, fmt.Errorf("malformed info file %s: %w", s.InfoFile, perr)
		}
		s.Info = info
	}
	return s, nil
}

func fileExists(fsys fs.FS, name string) bool {
	fi, err := fs.Stat(fsys, name)
	return err == nil && !fi.IsDir()
}

func dirNonEmpty(fsys fs.FS, name string) bool {
	entries, err := fs.ReadDir(fsys, name)
	return err == nil && len(entries) > 0
}

// Validate checks the structural rules: the info file must be present,
// the src directory present and non-empty, and either a main file or at
// least one valid submodule must exist.
func (s *Structure) Validate(fsys fs.FS) []error {
	var errs []error
	if !fileExists(fsys, s.InfoFile) {
		errs = append(errs, fmt.Errorf("missing info file %s", s.InfoFile))
	}
	if !dirNonEmpty(fsys, s.SrcDir) {
		errs = append(errs, fmt.Errorf("src directory %s missing or empty", s.SrcDir))
	}
	validSubs := 0
	for _, sub := range s.SubModules {
		if !validModuleName.MatchString(sub.Name) {
			errs = append(errs, fmt.Errorf("invalid submodule name %q", sub.Name))
			continue
		}
		if !fileExists(fsys, sub.InfoFile) {
			errs = append(errs, fmt.Errorf("submodule %s missing info file %s", sub.Name, sub.InfoFile))
			continue
		}
		if !sub.HasMainFile {
			errs = append(errs, fmt.Errorf("submodule %s missing main file", sub.Name))
			continue
		}
		validSubs++
	}
	if s.MainFile == "" && validSubs == 0 {
		errs = append(errs, fmt.Errorf("module %s has neither a main file nor a valid submodule", s.ModuleName))
	}
	if s.Info.Version != "" && !ValidVersion(s.Info.Version) {
		errs = append(errs, fmt.Errorf("invalid version %q", s.Info.Version))
	}
	return errs
}
