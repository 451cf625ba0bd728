package cmod

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInfo = `[Info] {
	name = "widgets";
	version = "1.2.3";
	author = "chtl";
	license = "MIT";
	dependencies = "base, icons";
	minVersion = "1.0.0";
	maxVersion = "2.0.0";
	homepage = "https://example.test";
}

[Export] {
	[Custom] @Style CardStyle, ButtonStyle;
	[Custom] @Element Card;
	[Template] @Style BaseStyle;
	[Origin] @Html RawHeader;
	[Configuration] Defaults;
}
`

func TestParseInfo(t *testing.T) {
	info, err := ParseInfo(sampleInfo)
	require.NoError(t, err)
	assert.Equal(t, "widgets", info.Name)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "chtl", info.Author)
	assert.Equal(t, "MIT", info.License)
	assert.Equal(t, []string{"base", "icons"}, info.Dependencies)
	assert.Equal(t, "1.0.0", info.MinVersion)
	assert.Equal(t, "https://example.test", info.Metadata["homepage"])

	assert.Equal(t, []string{"CardStyle", "ButtonStyle"}, info.Exports.CustomStyles)
	assert.Equal(t, []string{"Card"}, info.Exports.CustomElements)
	assert.Equal(t, []string{"BaseStyle"}, info.Exports.TemplateStyles)
	assert.Equal(t, []string{"RawHeader"}, info.Exports.Origins)
	assert.Equal(t, []string{"Defaults"}, info.Exports.Configurations)
}

func TestParseInfoMissingName(t *testing.T) {
	_, err := ParseInfo(`[Info] { version = "1.0.0"; }`)
	assert.Error(t, err)
}

func TestValidVersion(t *testing.T) {
	assert.True(t, ValidVersion("1.2.3"))
	assert.True(t, ValidVersion("0.1.0-beta"))
	assert.False(t, ValidVersion("1.2"))
	assert.False(t, ValidVersion("not-a-version"))
}

func TestCompatibleWith(t *testing.T) {
	info := Info{MinVersion: "1.0.0", MaxVersion: "2.0.0"}
	assert.True(t, info.CompatibleWith("1.5.0"))
	assert.True(t, info.CompatibleWith("1.0.0"))
	assert.True(t, info.CompatibleWith("2.0.0"))
	assert.False(t, info.CompatibleWith("0.9.0"))
	assert.False(t, info.CompatibleWith("2.1.0"))

	open := Info{}
	assert.True(t, open.CompatibleWith("9.9.9"))
}

func moduleFS() fstest.MapFS {
	return fstest.MapFS{
		"src/widgets.chtl":                {Data: []byte(`[Template] @Element Card { div { } }`)},
		"src/icons/src/icons.chtl":        {Data: []byte(`[Template] @Element Icon { span { } }`)},
		"src/icons/info/icons.chtl":       {Data: []byte("[Info] { name = \"icons\"; version = \"0.1.0\"; }")},
		"info/widgets.chtl":               {Data: []byte(sampleInfo)},
		"extras.chtl":                     {Data: []byte(`div { }`)},
	}
}

func TestAnalyzeStructure(t *testing.T) {
	s, err := Analyze(moduleFS(), "widgets")
	require.NoError(t, err)
	assert.Equal(t, "widgets", s.ModuleName)
	assert.Equal(t, "src/widgets.chtl", s.MainFile)
	assert.Equal(t, "info/widgets.chtl", s.InfoFile)
	require.Len(t, s.SubModules, 1)
	assert.Equal(t, "icons", s.SubModules[0].Name)
	assert.True(t, s.SubModules[0].HasMainFile)
	assert.Contains(t, s.ExtraFiles, "extras.chtl")
	assert.Equal(t, "widgets", s.Info.Name)
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	fsys := moduleFS()
	s, err := Analyze(fsys, "widgets")
	require.NoError(t, err)
	assert.Empty(t, s.Validate(fsys))
}

func TestValidateRejectsMissingInfo(t *testing.T) {
	fsys := fstest.MapFS{
		"src/broken.chtl": {Data: []byte(`div { }`)},
	}
	s, err := Analyze(fsys, "broken")
	require.NoError(t, err)
	errs := s.Validate(fsys)
	assert.NotEmpty(t, errs)
}

func TestValidateRequiresMainOrSubmodule(t *testing.T) {
	fsys := fstest.MapFS{
		"info/empty.chtl": {Data: []byte("[Info] { name = \"empty\"; version = \"1.0.0\"; }")},
		"src/.keep":       {Data: []byte("")},
	}
	s, err := Analyze(fsys, "empty")
	require.NoError(t, err)
	errs := s.Validate(fsys)
	require.NotEmpty(t, errs)
}

func TestArchiveRoundTrip(t *testing.T) {
	fsys := moduleFS()
	var buf bytes.Buffer
	require.NoError(t, Pack(fsys, &buf, CompressionNormal))

	// zip-family magic
	require.True(t, buf.Len() > 4)
	assert.Equal(t, []byte{'P', 'K', 0x03, 0x04}, buf.Bytes()[:4])

	dest := t.TempDir()
	require.NoError(t, Unpack(bytes.NewReader(buf.Bytes()), int64(buf.Len()), dest))

	for name, f := range fsys {
		data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
		require.NoError(t, err, name)
		assert.Equal(t, f.Data, data, name)
	}
}

func TestPackDeterministic(t *testing.T) {
	fsys := moduleFS()
	var first, second bytes.Buffer
	require.NoError(t, Pack(fsys, &first, CompressionBest))
	require.NoError(t, Pack(fsys, &second, CompressionBest))
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestUnpackRejectsEscapingEntries(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("../evil.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("nope"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	err = Unpack(bytes.NewReader(buf.Bytes()), int64(buf.Len()), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes the extraction root")
}

func TestUnpackRejectsGarbage(t *testing.T) {
	data := []byte("definitely not a zip archive")
	err := Unpack(bytes.NewReader(data), int64(len(data)), t.TempDir())
	assert.Error(t, err)
}
