package keyserver

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/raphi011/gitks/internal/git"
)

func TestParseCloneSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		dir     string
		want    CloneSource
		wantErr error
	}{
		{"nothing given", "", "", SelfReference{}, nil},
		{"self marker", "SELF", "", SelfReference{}, nil},
		{"self on both sides", "SELF", "SELF", SelfReference{}, nil},
		{"sentinel on both sides", SelfSentinel, SelfSentinel, SelfReference{}, nil},
		{"url only", "https://host/user/keys.git", "", Remote{URL: "https://host/user/keys.git"}, nil},
		{"url and dir", "git@host:user/keys.git", "/srv/keys", Remote{URL: "git@host:user/keys.git", Dir: "/srv/keys"}, nil},
		{"self url with dir", "SELF", "/srv/keys", nil, ErrUsage},
		{"dir without url", "", "/srv/keys", nil, ErrUsage},
		{"url with self dir", "https://host/keys.git", "SELF", nil, ErrUsage},
		{"url with sentinel dir", "https://host/keys.git", SelfSentinel, nil, ErrUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseCloneSource(tt.url, tt.dir)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseCloneSource(%q, %q) error = %v, want %v", tt.url, tt.dir, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCloneSource(%q, %q) = %#v, want %#v", tt.url, tt.dir, got, tt.want)
			}
		})
	}
}

func TestClient_CloneSelf(t *testing.T) {
	t.Parallel()

	c := &Client{CloneDir: resolveTempDir(t)}
	res, err := c.Clone(context.Background(), SelfReference{})
	if err != nil {
		t.Fatalf("Clone(self) = %v", err)
	}
	if res != (CloneResult{}) {
		t.Errorf("Clone(self) = %+v, want zero result", res)
	}
}

func TestClient_CloneRemote(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := setupRepo(t, "main", true)
	cloneDir := resolveTempDir(t)
	c := &Client{CloneDir: cloneDir}

	res, err := c.Clone(ctx, Remote{URL: src.Root()})
	if err != nil {
		t.Fatalf("Clone() = %v", err)
	}
	want := filepath.Join(cloneDir, "repo")
	if res.Dir != want || !res.Cloned {
		t.Errorf("Clone() = %+v, want cloned into %s", res, want)
	}
	if !git.IsGitRepository(ctx, want) {
		t.Fatalf("%s is not a repository after Clone", want)
	}

	again, err := c.Clone(ctx, Remote{URL: src.Root()})
	if err != nil {
		t.Fatalf("second Clone() = %v", err)
	}
	if again.Cloned || again.Dir != want {
		t.Errorf("second Clone() = %+v, want no-op on %s", again, want)
	}
}

func TestClient_CloneExplicitDir(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := setupRepo(t, "main", true)
	dest := filepath.Join(resolveTempDir(t), "nested", "keyserver")
	c := &Client{}

	res, err := c.Clone(ctx, Remote{URL: src.Root(), Dir: dest})
	if err != nil {
		t.Fatalf("Clone() = %v", err)
	}
	if res.Dir != dest || !res.Cloned {
		t.Errorf("Clone() = %+v, want cloned into %s", res, dest)
	}
}

func TestClient_CloneFailure(t *testing.T) {
	t.Parallel()

	c := &Client{CloneDir: resolveTempDir(t)}
	missing := filepath.Join(resolveTempDir(t), "missing.git")

	_, err := c.Clone(context.Background(), Remote{URL: missing})
	var cloneErr *git.CloneError
	if !errors.As(err, &cloneErr) {
		t.Fatalf("Clone() = %v, want *git.CloneError", err)
	}
	if cloneErr.ExitCode == 0 {
		t.Error("CloneError.ExitCode = 0, want non-zero")
	}
	if cloneErr.Stderr == "" {
		t.Error("CloneError.Stderr is empty")
	}
}

func TestClient_CloneInvalidRemote(t *testing.T) {
	t.Parallel()

	c := &Client{CloneDir: resolveTempDir(t)}
	for _, r := range []Remote{
		{URL: ""},
		{URL: Self},
		{URL: "https://host/keys.git", Dir: SelfSentinel},
	} {
		if _, err := c.Clone(context.Background(), r); !errors.Is(err, ErrUsage) {
			t.Errorf("Clone(%+v) = %v, want ErrUsage", r, err)
		}
	}
}
