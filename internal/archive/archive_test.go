package archive

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/hook-system/hook/internal/models"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTar(t *testing.T, files map[string]string, dirs ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, d := range dirs {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: d, Typeflag: tar.TypeDir, Mode: 0o755}))
	}
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(body))}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    Member
		ok      bool
		wantErr bool
	}{
		{
			name: "current year java",
			path: "CurrentYear/Ada_Lovelace_ab12/src/Main.java",
			want: Member{Path: "CurrentYear/Ada_Lovelace_ab12/src/Main.java", Owner: "ab12", Type: models.FileTypeCurrentYear, Language: models.LanguageJava},
			ok:   true,
		},
		{
			name: "previous year header with leading dot",
			path: "./PreviousYears/Alan_Turing_ff00/list.hpp",
			want: Member{Path: "PreviousYears/Alan_Turing_ff00/list.hpp", Owner: "ff00", Type: models.FileTypePreviousYear, Language: models.LanguageC},
			ok:   true,
		},
		{
			name: "folder without underscore is its own owner",
			path: "CurrentYear/c0ffee/main.c",
			want: Member{Path: "CurrentYear/c0ffee/main.c", Owner: "c0ffee", Type: models.FileTypeCurrentYear, Language: models.LanguageC},
			ok:   true,
		},
		{
			name: "whitelist",
			path: "Exclusions/template.cpp",
			want: Member{Path: "Exclusions/template.cpp", Type: models.FileTypeWhitelist, Language: models.LanguageC},
			ok:   true,
		},
		{name: "unknown root", path: "Misc/a_b/main.c"},
		{name: "unknown extension", path: "CurrentYear/a_b/notes.txt"},
		{name: "top-level file", path: "main.c"},
		{name: "file directly under root", path: "CurrentYear/main.c", wantErr: true},
		{name: "empty owner token", path: "PreviousYears/Grace_Hopper_/main.c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ParsePath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLayout)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadGzipArchive(t *testing.T) {
	data := gzipped(t, buildTar(t, map[string]string{
		"CurrentYear/A_B_s1/Main.java":  "class Main {}",
		"CurrentYear/C_D_s2/main.c":     "int main() { return 0; }",
		"PreviousYears/E_F_s9/Old.java": "class Old {}",
		"Exclusions/Skeleton.java":      "class Skeleton {}",
		"CurrentYear/README.java":       "oops",
		"CurrentYear/A_B_s1/notes.txt":  "ignored",
		"CurrentYear/C_D_s2/bad_utf8.h": "int x; \xff\xfe",
	}, "CurrentYear/", "CurrentYear/A_B_s1/"))

	got, err := Read(writeFile(t, "job.tar.gz", data))
	require.NoError(t, err)

	assert.Equal(t, 9, got.Members)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, "extract", got.Failures[0].Stage)
	assert.Contains(t, got.Failures[0].Error, "student folder")

	docs, whitelist := got.ByLanguage(models.LanguageJava)
	assert.Len(t, docs, 2)
	require.Len(t, whitelist, 1)
	assert.Equal(t, "Exclusions/Skeleton.java", whitelist[0].Path)

	cDocs, cWhitelist := got.ByLanguage(models.LanguageC)
	assert.Len(t, cDocs, 2)
	assert.Empty(t, cWhitelist)
	for _, f := range cDocs {
		assert.Equal(t, "s2", f.Owner)
		if f.Path == "CurrentYear/C_D_s2/bad_utf8.h" {
			assert.Equal(t, "int x; �", f.Content)
		}
	}
}

func TestReadPlainTar(t *testing.T) {
	data := buildTar(t, map[string]string{"CurrentYear/x_s1/a.c": "int a;"})

	got, err := Read(writeFile(t, "job.tar", data))
	require.NoError(t, err)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "int a;", got.Files[0].Content)
}

func TestReadRejectsNonArchive(t *testing.T) {
	_, err := Read(writeFile(t, "job.tar.gz", []byte("definitely not a tarball")))
	assert.ErrorIs(t, err, ErrUnsupportedArchive)

	_, err = Read(writeFile(t, "empty.tar", nil))
	assert.ErrorIs(t, err, ErrUnsupportedArchive)

	_, err = Read(filepath.Join(t.TempDir(), "missing.tar"))
	assert.Error(t, err)
}

func orderedTar(t *testing.T, names []string, bodies []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for i, name := range names {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(bodies[i]))}))
		_, err := tw.Write([]byte(bodies[i]))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func TestReadTruncatedArchiveKeepsEarlierMembers(t *testing.T) {
	names := []string{"CurrentYear/a_s1/A.java", "CurrentYear/b_s2/B.java", "CurrentYear/c_s3/C.java"}
	bodies := []string{"class A {}", "class B {}", "class C { int longEnoughBody; }"}
	full := orderedTar(t, names, bodies)

	// every member here is one header block plus one padded body block
	const block = 512
	thirdBody := 2*2*block + block

	tests := []struct {
		name        string
		data        []byte
		members     int
		failurePath string
	}{
		{
			name:        "cut inside third body",
			data:        full[:thirdBody+5],
			members:     3,
			failurePath: "CurrentYear/c_s3/C.java",
		},
		{
			name:        "cut inside third header",
			data:        full[:2*2*block+100],
			members:     2,
			failurePath: truncatedPath,
		},
		{
			name:        "gzip of cut tar",
			data:        gzipped(t, full[:thirdBody+5]),
			members:     3,
			failurePath: "CurrentYear/c_s3/C.java",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(writeFile(t, "job.tar.gz", tt.data))
			require.NoError(t, err)

			assert.Equal(t, tt.members, got.Members)
			require.Len(t, got.Files, 2)
			assert.Equal(t, "class A {}", got.Files[0].Content)
			assert.Equal(t, "class B {}", got.Files[1].Content)

			require.Len(t, got.Failures, 1)
			assert.Equal(t, "extract", got.Failures[0].Stage)
			assert.Equal(t, tt.failurePath, got.Failures[0].Path)
		})
	}
}
