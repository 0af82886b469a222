package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/starford/promptvault/internal/apperr"
	"github.com/starford/promptvault/internal/cache"
	"github.com/starford/promptvault/internal/meta"
	"github.com/starford/promptvault/internal/models"
	"github.com/starford/promptvault/internal/remote"
	"github.com/starford/promptvault/internal/testutil"
)

func setup(t *testing.T, prompts ...testutil.Prompt) (*Repository, *remote.Memory, *cache.Stores) {
	t.Helper()
	tree := testutil.Tree(t, prompts...)
	stores := cache.NewStores()
	return New(tree, stores, Config{}, testutil.Logger()), tree, stores
}

func slugsOf(docs []models.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Slug
	}
	return out
}

func TestListDocumentDirectories_OnlyDirectoriesAndCached(t *testing.T) {
	repo, tree, _ := setup(t, testutil.Sample()...)
	tree.Seed("stray file", map[string]string{"prompts/README.md": "# prompts"})

	dirs := repo.ListDocumentDirectories(context.Background())
	if len(dirs) != 3 {
		t.Fatalf("dirs = %+v, want 3", dirs)
	}
	for _, d := range dirs {
		if d.Kind != remote.KindDir {
			t.Errorf("entry %s has kind %s", d.Path, d.Kind)
		}
	}

	repo.ListDocumentDirectories(context.Background())
	if n := tree.Calls(remote.OpGetDirectory); n != 1 {
		t.Errorf("GetDirectory calls = %d, want 1", n)
	}
}

func TestListDocumentDirectories_FailureDegrades(t *testing.T) {
	repo, tree, _ := setup(t, testutil.Sample()...)
	tree.FailOn(remote.OpGetDirectory, errors.New("boom"))

	if dirs := repo.ListDocumentDirectories(context.Background()); len(dirs) != 0 {
		t.Fatalf("dirs = %+v, want empty", dirs)
	}
	res := repo.ListDocuments(context.Background(), models.ListParams{})
	if res.Total != 0 || len(res.Items) != 0 || res.Items == nil {
		t.Errorf("list = %+v, want empty", res)
	}

	// Failures are not cached.
	tree.FailOn(remote.OpGetDirectory, nil)
	if dirs := repo.ListDocumentDirectories(context.Background()); len(dirs) != 3 {
		t.Errorf("after recovery dirs = %d, want 3", len(dirs))
	}
}

func TestListDocuments_FailedListingNotCached(t *testing.T) {
	repo, tree, _ := setup(t, testutil.Sample()...)
	ctx := context.Background()
	tree.FailOn(remote.OpGetDirectory, errors.New("boom"))
	if res := repo.ListDocuments(ctx, models.ListParams{}); res.Total != 0 {
		t.Fatalf("total = %d, want 0 while the remote fails", res.Total)
	}

	tree.FailOn(remote.OpGetDirectory, nil)
	if res := repo.ListDocuments(ctx, models.ListParams{}); res.Total != 3 {
		t.Errorf("total after recovery = %d, want 3", res.Total)
	}
	if n := tree.Calls(remote.OpGetDirectory); n != 2 {
		t.Errorf("GetDirectory calls = %d, want 2", n)
	}
}

func TestListDocuments_FailedBodyReadNotCached(t *testing.T) {
	repo, tree, _ := setup(t, testutil.Sample()...)
	ctx := context.Background()
	tree.FailOn(remote.OpGetFile, errors.New("rate limited"))
	if res := repo.ListDocuments(ctx, models.ListParams{}); res.Total != 0 {
		t.Fatalf("total = %d, want 0 while reads fail", res.Total)
	}

	tree.FailOn(remote.OpGetFile, nil)
	res := repo.ListDocuments(ctx, models.ListParams{})
	if got := strings.Join(slugsOf(res.Items), ","); got != "alpha,bravo,charlie" {
		t.Errorf("slugs after recovery = %q", got)
	}
}

// flakyMeta fails every read of a metadata file.
type flakyMeta struct {
	*remote.Memory
}

func (f flakyMeta) GetFile(ctx context.Context, p, ref string) (*remote.File, error) {
	if strings.HasSuffix(p, "/"+DefaultMetaFile) {
		return nil, errors.New("timeout")
	}
	return f.Memory.GetFile(ctx, p, ref)
}

func TestFetchDocument_MetaReadFailureNotCached(t *testing.T) {
	tree := testutil.Tree(t, testutil.Sample()...)
	stores := cache.NewStores()
	repo := New(flakyMeta{tree}, stores, Config{}, testutil.Logger())
	ctx := context.Background()

	doc, ok := repo.FetchDocument(ctx, "alpha")
	if !ok || doc.Body != "Say hello to the new user." {
		t.Fatalf("fetch = %+v, %v", doc, ok)
	}
	if doc.Metadata.Title != "alpha" {
		t.Errorf("title = %q, want fallback to slug", doc.Metadata.Title)
	}
	if n := stores.Documents.Len(); n != 0 {
		t.Errorf("documents cached = %d, want 0", n)
	}

	res := repo.ListDocuments(ctx, models.ListParams{})
	if res.Total != 3 {
		t.Errorf("total = %d, want 3", res.Total)
	}
	if n := stores.Lists.Len(); n != 0 {
		t.Errorf("lists cached = %d, want 0", n)
	}
}

func TestFetchDocument(t *testing.T) {
	repo, _, _ := setup(t, testutil.Sample()...)

	doc, ok := repo.FetchDocument(context.Background(), "alpha")
	if !ok {
		t.Fatal("alpha not found")
	}
	if doc.Metadata.Title != "Alpha Greeting" || doc.Body != "Say hello to the new user." {
		t.Errorf("doc = %+v", doc)
	}
	if doc.StoragePath != "prompts/alpha" {
		t.Errorf("path = %q", doc.StoragePath)
	}
}

func TestFetchDocument_MissingBodyIsAbsent(t *testing.T) {
	repo, _, _ := setup(t, testutil.Prompt{Slug: "nobody", Meta: "title: No Body\n"})
	if _, ok := repo.FetchDocument(context.Background(), "nobody"); ok {
		t.Error("document without body should be absent")
	}
	if _, ok := repo.FetchDocument(context.Background(), "missing"); ok {
		t.Error("unknown slug should be absent")
	}
}

func TestFetchDocument_MissingMetaUsesDefaults(t *testing.T) {
	repo, _, _ := setup(t, testutil.Prompt{Slug: "bare", Body: "just a body"})
	doc, ok := repo.FetchDocument(context.Background(), "bare")
	if !ok {
		t.Fatal("bare not found")
	}
	if doc.Metadata.Title != "bare" || doc.Metadata.Author != meta.DefaultAuthor {
		t.Errorf("meta = %+v", doc.Metadata)
	}
}

func TestFetchDocument_RejectsTraversal(t *testing.T) {
	repo, tree, _ := setup(t, testutil.Sample()...)
	for _, slug := range []string{"../secrets", "a/b", `a\b`, ".hidden", ""} {
		if _, ok := repo.FetchDocument(context.Background(), slug); ok {
			t.Errorf("FetchDocument(%q) should be absent", slug)
		}
	}
	if n := tree.Calls(remote.OpGetFile); n != 0 {
		t.Errorf("GetFile calls = %d, want 0", n)
	}
}

func TestFetchDocument_Cached(t *testing.T) {
	repo, tree, _ := setup(t, testutil.Sample()...)
	repo.FetchDocument(context.Background(), "bravo")
	calls := tree.Calls(remote.OpGetFile)
	repo.FetchDocument(context.Background(), "bravo")
	if n := tree.Calls(remote.OpGetFile); n != calls {
		t.Errorf("GetFile calls grew from %d to %d on cached fetch", calls, n)
	}
}

func TestFetchDocument_ReadFailureDegrades(t *testing.T) {
	repo, tree, _ := setup(t, testutil.Sample()...)
	tree.FailOn(remote.OpGetFile, errors.New("rate limited"))
	if _, ok := repo.FetchDocument(context.Background(), "alpha"); ok {
		t.Error("fetch should degrade to absent")
	}
}

func TestCacheExpiry(t *testing.T) {
	tree := testutil.Tree(t, testutil.Sample()...)
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	repo := New(tree, cache.NewStores(cache.WithTTL(time.Minute), cache.WithClock(clock)), Config{}, testutil.Logger())

	repo.ListDocumentDirectories(context.Background())
	now = now.Add(59 * time.Second)
	repo.ListDocumentDirectories(context.Background())
	if n := tree.Calls(remote.OpGetDirectory); n != 1 {
		t.Fatalf("calls before expiry = %d, want 1", n)
	}
	now = now.Add(time.Second)
	repo.ListDocumentDirectories(context.Background())
	if n := tree.Calls(remote.OpGetDirectory); n != 2 {
		t.Errorf("calls after expiry = %d, want 2", n)
	}
}

func TestListDocuments_Pagination(t *testing.T) {
	repo, _, _ := setup(t, testutil.Sample()...)

	res := repo.ListDocuments(context.Background(), models.ListParams{Page: 2, PerPage: 1})
	if res.Total != 3 || res.Page != 2 || res.PerPage != 1 {
		t.Errorf("result = %+v", res)
	}
	if got := slugsOf(res.Items); len(got) != 1 || got[0] != "bravo" {
		t.Errorf("items = %v, want [bravo]", got)
	}

	past := repo.ListDocuments(context.Background(), models.ListParams{Page: 9, PerPage: 2})
	if past.Total != 3 || len(past.Items) != 0 {
		t.Errorf("past last page = %+v", past)
	}
}

func TestListDocuments_Defaults(t *testing.T) {
	repo, _, _ := setup(t, testutil.Sample()...)
	res := repo.ListDocuments(context.Background(), models.ListParams{Page: -3, PerPage: 0})
	if res.Page != 1 || res.PerPage != DefaultPerPage || len(res.Items) != 3 {
		t.Errorf("result = %+v", res)
	}
}

func TestListDocuments_Filters(t *testing.T) {
	repo, _, _ := setup(t, testutil.Sample()...)
	tests := []struct {
		name   string
		params models.ListParams
		want   []string
	}{
		{"single tag", models.ListParams{Tags: []string{"support"}}, []string{"bravo", "charlie"}},
		{"all tags required", models.ListParams{Tags: []string{"support", "email"}}, []string{"bravo"}},
		{"blank tags ignored", models.ListParams{Tags: []string{" ", ""}}, []string{"alpha", "bravo", "charlie"}},
		{"query in body", models.ListParams{Query: "REFUND"}, []string{"bravo"}},
		{"query in use cases", models.ListParams{Query: "onboard"}, []string{"alpha"}},
		{"tag and query", models.ListParams{Tags: []string{"support"}, Query: "thread"}, []string{"charlie"}},
		{"no match", models.ListParams{Query: "zzz"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := repo.ListDocuments(context.Background(), tt.params)
			got := slugsOf(res.Items)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("items = %v, want %v", got, tt.want)
			}
			if res.Total != len(tt.want) {
				t.Errorf("total = %d, want %d", res.Total, len(tt.want))
			}
		})
	}
}

func TestListDocuments_SkipsDirectoriesWithoutBody(t *testing.T) {
	prompts := append(testutil.Sample(), testutil.Prompt{Slug: "draft", Meta: "title: Draft\n"})
	repo, _, _ := setup(t, prompts...)
	res := repo.ListDocuments(context.Background(), models.ListParams{})
	if res.Total != 3 {
		t.Errorf("total = %d, want 3", res.Total)
	}
}

func TestUnconfigured(t *testing.T) {
	repo := New(nil, nil, Config{}, testutil.Logger())
	ctx := context.Background()

	if repo.Configured() {
		t.Error("Configured = true")
	}
	if dirs := repo.ListDocumentDirectories(ctx); len(dirs) != 0 {
		t.Errorf("dirs = %v", dirs)
	}
	if _, ok := repo.FetchDocument(ctx, "alpha"); ok {
		t.Error("fetch should be absent")
	}
	if res := repo.ListDocuments(ctx, models.ListParams{}); res.Total != 0 {
		t.Errorf("list = %+v", res)
	}
	if v, err := repo.ListVersions(ctx, "alpha"); err != nil || len(v) != 0 {
		t.Errorf("versions = %v, %v", v, err)
	}
	if d, err := repo.ComputeDiff(ctx, models.DiffRequest{Slug: "alpha", Base: "a", Head: "b"}); err != nil || d != "" {
		t.Errorf("diff = %q, %v", d, err)
	}

	_, err := repo.WriteDocument(ctx, writeRequest("alpha", "feature/prompt/alpha-1"))
	if !errors.Is(err, apperr.ErrRemoteUnavailable) {
		t.Errorf("write err = %v, want remote unavailable", err)
	}
}

func TestListVersions(t *testing.T) {
	repo, tree, _ := setup(t, testutil.Sample()...)
	testutil.Seed(t, tree, "tweak alpha", testutil.Prompt{Slug: "alpha", Body: "Say hi to the new user."})
	testutil.Seed(t, tree, "tweak bravo", testutil.Prompt{Slug: "bravo", Body: "Refund politely."})

	versions, err := repo.ListVersions(context.Background(), "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 {
		t.Fatalf("versions = %+v, want 2", versions)
	}
	if versions[0].Message != "tweak alpha" || versions[1].Message != "seed prompts" {
		t.Errorf("order = %q, %q", versions[0].Message, versions[1].Message)
	}
	if versions[0].Revision == "" || versions[0].Timestamp == "" {
		t.Errorf("version = %+v", versions[0])
	}
}

func TestListVersions_Limit(t *testing.T) {
	tree := testutil.Tree(t, testutil.Prompt{Slug: "busy", Body: "v0"})
	for i := 1; i <= 5; i++ {
		testutil.Seed(t, tree, fmt.Sprintf("edit %d", i), testutil.Prompt{Slug: "busy", Body: fmt.Sprintf("v%d", i)})
	}
	repo := New(tree, nil, Config{MaxVersions: 3}, testutil.Logger())

	versions, err := repo.ListVersions(context.Background(), "busy")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 3 || versions[0].Message != "edit 5" {
		t.Errorf("versions = %+v", versions)
	}
}

func TestListVersions_Degrades(t *testing.T) {
	repo, tree, _ := setup(t, testutil.Sample()...)
	tree.FailOn(remote.OpListCommits, errors.New("boom"))
	versions, err := repo.ListVersions(context.Background(), "alpha")
	if err != nil || versions == nil || len(versions) != 0 {
		t.Errorf("versions = %#v, err = %v", versions, err)
	}
	if _, err := repo.ListVersions(context.Background(), "../x"); !errors.Is(err, apperr.ErrInvalidPayload) {
		t.Errorf("invalid slug err = %v", err)
	}
}

func TestComputeDiff(t *testing.T) {
	repo, tree, _ := setup(t, testutil.Sample()...)
	base := testutil.Seed(t, tree, "noop", testutil.Prompt{Slug: "charlie", Meta: "title: Charlie Summary\ntags: [support]\nlanguage: fr\n"})
	head := testutil.Seed(t, tree, "edit alpha", testutil.Prompt{Slug: "alpha", Body: "Say hi to the new user."})

	patch, err := repo.ComputeDiff(context.Background(), models.DiffRequest{Slug: "alpha", Base: base, Head: head})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(patch, "-Say hello to the new user.") || !strings.Contains(patch, "+Say hi to the new user.") {
		t.Errorf("patch = %q", patch)
	}

	unchanged, err := repo.ComputeDiff(context.Background(), models.DiffRequest{Slug: "bravo", Base: base, Head: head})
	if err != nil || unchanged != "" {
		t.Errorf("unchanged diff = %q, %v", unchanged, err)
	}
}

func TestComputeDiff_Validation(t *testing.T) {
	repo, tree, _ := setup(t, testutil.Sample()...)
	for _, req := range []models.DiffRequest{
		{Slug: "alpha", Head: "b"},
		{Slug: "alpha", Base: "a"},
		{Slug: "a/b", Base: "a", Head: "b"},
	} {
		if _, err := repo.ComputeDiff(context.Background(), req); !errors.Is(err, apperr.ErrInvalidPayload) {
			t.Errorf("ComputeDiff(%+v) err = %v", req, err)
		}
	}

	tree.FailOn(remote.OpCompare, errors.New("boom"))
	if d, err := repo.ComputeDiff(context.Background(), models.DiffRequest{Slug: "alpha", Base: "a", Head: "b"}); d != "" || err != nil {
		t.Errorf("failed compare = %q, %v", d, err)
	}
}

func TestValidSlug(t *testing.T) {
	valid := []string{"alpha", "welcome-message", "a.b", "x_1"}
	invalid := []string{"", ".", "..", ".env", "a/b", `a\b`, "a..b"}
	for _, s := range valid {
		if !ValidSlug(s) {
			t.Errorf("ValidSlug(%q) = false", s)
		}
	}
	for _, s := range invalid {
		if ValidSlug(s) {
			t.Errorf("ValidSlug(%q) = true", s)
		}
	}
}
