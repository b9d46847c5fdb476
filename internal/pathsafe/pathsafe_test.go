package pathsafe

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRoot creates root/proj/docs/guide.md and root/secret.md and returns the
// canonical root.
func setupRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proj", "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "proj", "docs", "guide.md"), []byte("# guide"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "proj", "logo.png"), []byte("png"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.md"), []byte("secret"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "other"), 0755))
	return root
}

func TestResolveRejectsTraversal(t *testing.T) {
	root := setupRoot(t)

	rels := []string{
		"../secret.md",
		"../../etc/passwd.md",
		"docs/../../secret.md",
		"docs/../../other/x.md",
		"./../proj/../secret.md",
		"..",
		"/etc/passwd.md",
		"docs/\x00.md",
	}

	resolvers := map[string]func(root, project, rel string) (string, error){
		"read":   ResolveReadPath,
		"upload": ResolveUploadDir,
		"asset":  ResolveAssetPath,
	}

	for name, fn := range resolvers {
		for _, rel := range rels {
			t.Run(name+"/"+rel, func(t *testing.T) {
				_, err := fn(root, "proj", rel)
				assert.ErrorIs(t, err, ErrRejected)
			})
		}
	}
}

func TestResolveRejectsBadProject(t *testing.T) {
	root := setupRoot(t)

	for _, project := range []string{"", ".", "..", ".git", ".hidden", "proj/docs", "../proj", `proj\docs`} {
		t.Run(project, func(t *testing.T) {
			_, err := ResolveReadPath(root, project, "docs/guide.md")
			assert.ErrorIs(t, err, ErrRejected)
			_, err = ResolveUploadDir(root, project, "")
			assert.ErrorIs(t, err, ErrRejected)
			_, err = ResolveAssetPath(root, project, "logo.png")
			assert.ErrorIs(t, err, ErrRejected)
		})
	}
}

func TestHiddenProjectIsRejected(t *testing.T) {
	root := setupRoot(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "config.md"), []byte("x"), 0644))

	_, err := ProjectDir(root, ".git")
	assert.ErrorIs(t, err, ErrRejected)
	_, err = ResolveAssetPath(root, ".git", "config.md")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestResolveWithinProject(t *testing.T) {
	root := setupRoot(t)
	proj := filepath.Join(root, "proj")

	tests := []struct {
		name string
		fn   func(root, project, rel string) (string, error)
		rel  string
		want string
	}{
		{"read nested", ResolveReadPath, "docs/guide.md", filepath.Join(proj, "docs", "guide.md")},
		{"read dot segments", ResolveReadPath, "docs/./x/../guide.md", filepath.Join(proj, "docs", "guide.md")},
		{"read missing file", ResolveReadPath, "docs/missing.md", filepath.Join(proj, "docs", "missing.md")},
		{"read upper-case ext", ResolveReadPath, "README.MARKDOWN", filepath.Join(proj, "README.MARKDOWN")},
		{"upload project dir", ResolveUploadDir, "", proj},
		{"upload sub dir", ResolveUploadDir, "docs", filepath.Join(proj, "docs")},
		{"upload missing dir", ResolveUploadDir, "docs/new/deeper", filepath.Join(proj, "docs", "new", "deeper")},
		{"asset image", ResolveAssetPath, "logo.png", filepath.Join(proj, "logo.png")},
		{"asset markdown", ResolveAssetPath, "docs/guide.md", filepath.Join(proj, "docs", "guide.md")},
		{"name with dots", ResolveAssetPath, "docs/..hidden..png", filepath.Join(proj, "docs", "..hidden..png")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(root, "proj", tt.rel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, Contains(proj, got))
		})
	}
}

func TestResolveReadPathRequiresMarkdown(t *testing.T) {
	root := setupRoot(t)

	for _, rel := range []string{"logo.png", "docs", "", "notes.txt", "docs/guide.md.bak"} {
		_, err := ResolveReadPath(root, "proj", rel)
		assert.ErrorIs(t, err, ErrRejected, rel)
	}
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	root := setupRoot(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "leak.md"), []byte("leak"), 0644))

	proj := filepath.Join(root, "proj")
	require.NoError(t, os.Symlink(outside, filepath.Join(proj, "escape")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "leak.md"), filepath.Join(proj, "leak.md")))
	require.NoError(t, os.Symlink(filepath.Join(proj, "docs"), filepath.Join(proj, "alias")))

	_, err := ResolveReadPath(root, "proj", "escape/leak.md")
	assert.ErrorIs(t, err, ErrRejected)
	_, err = ResolveReadPath(root, "proj", "leak.md")
	assert.ErrorIs(t, err, ErrRejected)
	_, err = ResolveUploadDir(root, "proj", "escape")
	assert.ErrorIs(t, err, ErrRejected)
	_, err = ResolveUploadDir(root, "proj", "escape/not-yet-created")
	assert.ErrorIs(t, err, ErrRejected)

	// A symlink that stays inside the project is fine.
	got, err := ResolveReadPath(root, "proj", "alias/guide.md")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(proj, "docs", "guide.md"), got)
}

func TestProjectSymlinkOutsideRoot(t *testing.T) {
	root := setupRoot(t)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "linked")))

	_, err := ProjectDir(root, "linked")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestResolveOSErrorIsNotRejection(t *testing.T) {
	root := setupRoot(t)
	loop := filepath.Join(root, "proj", "loop")
	require.NoError(t, os.Symlink(loop, loop))

	_, err := ResolveAssetPath(root, "proj", "loop/x.png")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRejected))
}

func TestContains(t *testing.T) {
	sep := string(os.PathSeparator)
	base := sep + filepath.Join("srv", "docs")

	assert.True(t, Contains(base, base))
	assert.True(t, Contains(base, filepath.Join(base, "a", "b.md")))
	assert.True(t, Contains(base, base+sep))
	assert.False(t, Contains(base, base+"-evil"))
	assert.False(t, Contains(base, filepath.Dir(base)))
	assert.False(t, Contains(base, filepath.Join(base, "..", "docs2")))
}

func TestRelSlash(t *testing.T) {
	base := filepath.Join(string(os.PathSeparator)+"srv", "proj")
	assert.Equal(t, "docs/a.md", RelSlash(base, filepath.Join(base, "docs", "a.md")))
	assert.Equal(t, "", RelSlash(base, base))
}
