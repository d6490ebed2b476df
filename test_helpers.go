package trunkvers

import (
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/go-git/go-git/v5/storage/memory"
)

var testSignature = &object.Signature{
	Name:  "test",
	Email: "test@example.com",
	When:  time.Now(),
}

// testRepoCreate creates a new in-memory git repository for testing
func testRepoCreate() (*git.Repository, error) {
	storage := memory.NewStorage()
	fs := memfs.New()
	return git.Init(storage, fs)
}

// testRepoFSCreate creates a new filesystem-based git repository for testing
func testRepoFSCreate(path string) (*git.Repository, error) {
	fs := osfs.New(path)
	storage := filesystem.NewStorage(fs, nil)
	return git.Init(storage, fs)
}

// testRepoCommit writes filename and commits it with message
func testRepoCommit(repo *git.Repository, filename, message string) (plumbing.Hash, error) {
	workTree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	err = writeFile(workTree.Filesystem, filename, message)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	_, err = workTree.Add(filename)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	return workTree.Commit(message, &git.CommitOptions{Author: testSignature})
}

// testRepoSingleCommitPastRelease creates a repo with a release tag and then adds another commit
func testRepoSingleCommitPastRelease(repo *git.Repository, tag string) (*git.Repository, error) {
	tagCommit, err := testRepoCommit(repo, "initial.txt", "Release commit")
	if err != nil {
		return nil, err
	}

	_, err = repo.CreateTag(tag, tagCommit, nil)
	if err != nil {
		return nil, err
	}

	_, err = testRepoCommit(repo, "post-release.txt", "Post-release commit")
	if err != nil {
		return nil, err
	}

	return repo, nil
}

// writeFile writes content to a file in the given filesystem
func writeFile(fs billy.Filesystem, filename, content string) error {
	file, err := fs.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.Write([]byte(content))
	return err
}

// testingT is the part of *testing.T the graph builder reports failures through.
type testingT interface {
	Helper()
	Fatalf(format string, args ...interface{})
}

// testGraph builds commit graphs directly in object storage, without a worktree, so
// tests can lay out branches and merges in any shape. Commits are named, every commit
// is one minute younger than the previous one and all share the empty tree.
type testGraph struct {
	t       testingT
	repo    *git.Repository
	tree    plumbing.Hash
	when    time.Time
	commits map[string]*object.Commit
}

func newTestGraph(t testingT) *testGraph {
	t.Helper()

	repo, err := git.Init(memory.NewStorage(), nil)
	if err != nil {
		t.Fatalf("init repository: %s", err)
	}

	obj := repo.Storer.NewEncodedObject()
	if err := (&object.Tree{}).Encode(obj); err != nil {
		t.Fatalf("encode tree: %s", err)
	}
	tree, err := repo.Storer.SetEncodedObject(obj)
	if err != nil {
		t.Fatalf("store tree: %s", err)
	}

	return &testGraph{
		t:       t,
		repo:    repo,
		tree:    tree,
		when:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		commits: map[string]*object.Commit{},
	}
}

// commit stores a commit called name with the named parents, first parent first.
func (g *testGraph) commit(name, message string, parents ...string) *object.Commit {
	g.t.Helper()

	g.when = g.when.Add(time.Minute)
	sig := object.Signature{Name: "test", Email: "test@example.com", When: g.when}
	c := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   message,
		TreeHash:  g.tree,
	}
	for _, p := range parents {
		c.ParentHashes = append(c.ParentHashes, g.get(p).Hash)
	}

	obj := g.repo.Storer.NewEncodedObject()
	if err := c.Encode(obj); err != nil {
		g.t.Fatalf("encode commit %s: %s", name, err)
	}
	hash, err := g.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		g.t.Fatalf("store commit %s: %s", name, err)
	}
	stored, err := g.repo.CommitObject(hash)
	if err != nil {
		g.t.Fatalf("read commit %s: %s", name, err)
	}
	g.commits[name] = stored
	return stored
}

// chain stores one commit per name, each the child of the previous, starting from parent.
func (g *testGraph) chain(parent string, names ...string) *object.Commit {
	g.t.Helper()

	var last *object.Commit
	for _, name := range names {
		if parent == "" {
			last = g.commit(name, "commit "+name)
		} else {
			last = g.commit(name, "commit "+name, parent)
		}
		parent = name
	}
	return last
}

func (g *testGraph) get(name string) *object.Commit {
	g.t.Helper()

	c, ok := g.commits[name]
	if !ok {
		g.t.Fatalf("unknown commit %s", name)
	}
	return c
}

// branch points the local branch at the named commit.
func (g *testGraph) branch(branch, commit string) {
	g.t.Helper()

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), g.get(commit).Hash)
	if err := g.repo.Storer.SetReference(ref); err != nil {
		g.t.Fatalf("set branch %s: %s", branch, err)
	}
}

// checkout points HEAD at the local branch.
func (g *testGraph) checkout(branch string) {
	g.t.Helper()

	ref := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))
	if err := g.repo.Storer.SetReference(ref); err != nil {
		g.t.Fatalf("checkout %s: %s", branch, err)
	}
}

// tag creates a lightweight tag on the named commit.
func (g *testGraph) tag(tag, commit string) {
	g.t.Helper()

	if _, err := g.repo.CreateTag(tag, g.get(commit).Hash, nil); err != nil {
		g.t.Fatalf("tag %s: %s", tag, err)
	}
}

// annotatedTag creates an annotated tag on the named commit.
func (g *testGraph) annotatedTag(tag, commit string) {
	g.t.Helper()

	opts := &git.CreateTagOptions{
		Tagger:  &object.Signature{Name: "test", Email: "test@example.com", When: g.when},
		Message: "release " + tag,
	}
	if _, err := g.repo.CreateTag(tag, g.get(commit).Hash, opts); err != nil {
		g.t.Fatalf("tag %s: %s", tag, err)
	}
}
