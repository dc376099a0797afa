package nightly

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lan-dot-party/relkit/internal/execx"
	"github.com/lan-dot-party/relkit/internal/semver"
	"github.com/lan-dot-party/relkit/internal/sink"
	"github.com/lan-dot-party/relkit/internal/vcs"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 7, 23, 59, 0, 0, time.UTC) }

func TestTagWithDate(t *testing.T) {
	tag, err := Tag(context.Background(), "1.2.0", DateIdentifier(fixedNow))
	require.NoError(t, err)
	assert.Equal(t, "1.2.0-nightly.20250307", tag)
}

func TestTagWithRevision(t *testing.T) {
	fake := execx.NewFake().On("git rev-parse --short HEAD", "abc1234\n")
	id, err := NewIdentifier("revision", vcs.NewGit(fake, nil).ShortRevision, nil)
	require.NoError(t, err)

	tag, err := Tag(context.Background(), "1.1.6", id)
	require.NoError(t, err)
	assert.Equal(t, "1.1.6-nightly.abc1234", tag)
}

func TestTagIsIdempotent(t *testing.T) {
	calls := 0
	id := func(context.Context) (string, error) {
		calls++
		return "ffffff", nil
	}

	for _, existing := range []string{"1.1.6-nightly.abc1234", "1.2.0-nightly.20250101"} {
		tag, err := Tag(context.Background(), existing, id)
		require.NoError(t, err)
		assert.Equal(t, existing, tag)

		again, err := Tag(context.Background(), tag, id)
		require.NoError(t, err)
		assert.Equal(t, tag, again)
	}
	assert.Zero(t, calls)
}

func TestTagRevisionUnavailable(t *testing.T) {
	fake := execx.NewFake().Fail("git rev-parse --short HEAD", 128, "fatal: not a git repository")
	id, err := NewIdentifier("revision", vcs.NewGit(fake, nil).ShortRevision, nil)
	require.NoError(t, err)

	_, err = Tag(context.Background(), "1.1.6", id)
	assert.ErrorIs(t, err, vcs.ErrRevisionUnavailable)
}

func TestTagEmptyBase(t *testing.T) {
	_, err := Tag(context.Background(), "", DateIdentifier(fixedNow))
	assert.ErrorIs(t, err, semver.ErrMalformedVersion)

	_, err = ResolveTag(context.Background(), "", "  ", DateIdentifier(fixedNow))
	assert.ErrorIs(t, err, semver.ErrMalformedVersion)
}

func TestTagKeepsNonNumericBase(t *testing.T) {
	id := DateIdentifier(fixedNow)

	tag, err := Tag(context.Background(), "2.0.0-rc1", id)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0-rc1-nightly.20250307", tag)

	tag, err = ResolveTag(context.Background(), "1.0.0", "1.2", id)
	require.NoError(t, err)
	assert.Equal(t, "1.2-nightly.20250307", tag)
}

func TestTagRenewsBareNightlySuffix(t *testing.T) {
	tag, err := Tag(context.Background(), "1.0.0-nightly", DateIdentifier(fixedNow))
	require.NoError(t, err)
	assert.Equal(t, "1.0.0-nightly.20250307", tag)
}

func TestResolveTagOverrideStripsSuffix(t *testing.T) {
	id := DateIdentifier(fixedNow)

	tag, err := ResolveTag(context.Background(), "1.0.0", "1.3.0-nightly.20240101", id)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0-nightly.20250307", tag)

	tag, err = ResolveTag(context.Background(), "1.0.0-nightly.20240101", "", id)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0-nightly.20240101", tag)
}

func TestNewIdentifierUnknown(t *testing.T) {
	_, err := NewIdentifier("weekly", nil, nil)
	assert.Error(t, err)

	_, err = NewIdentifier("revision", nil, nil)
	assert.Error(t, err)
}

func newTestTrigger(fake *execx.Fake, input string, assumeYes bool) (*Trigger, *bytes.Buffer) {
	var out bytes.Buffer
	tr := NewTrigger(Options{
		CLI:       "gh",
		Workflow:  "nightly-release.yml",
		Input:     "version_tag",
		Repo:      "OpenSurface/SonosESP",
		AssumeYes: assumeYes,
	}, fake, strings.NewReader(input), &out, nil)
	return tr, &out
}

func TestRunDispatchesAfterConfirmation(t *testing.T) {
	for _, answer := range []string{"y\n", "YES\n", "  yes  \n", "Y"} {
		fake := execx.NewFake().
			On("gh --version", "gh version 2.62.0\n").
			On("gh workflow run nightly-release.yml -f version_tag=1.2.0-nightly.20250307", "")
		tr, out := newTestTrigger(fake, answer, false)

		require.NoError(t, tr.Run(context.Background(), "1.2.0-nightly.20250307"), answer)
		assert.Contains(t, out.String(), "Tag: v1.2.0-nightly.20250307")
		assert.Equal(t, []string{
			"gh --version",
			"gh workflow run nightly-release.yml -f version_tag=1.2.0-nightly.20250307",
		}, fake.Calls())
	}
}

func TestRunCancelled(t *testing.T) {
	for _, answer := range []string{"n\n", "\n", "", "yep\n", "no"} {
		fake := execx.NewFake().On("gh --version", "gh version 2.62.0\n")
		tr, _ := newTestTrigger(fake, answer, false)

		err := tr.Run(context.Background(), "1.2.0-nightly.20250307")
		assert.ErrorIs(t, err, ErrCancelled, answer)
		assert.Equal(t, OutcomeCancelled, OutcomeOf(err))
		assert.Equal(t, []string{"gh --version"}, fake.Calls(), "no remote effect after cancel")
	}
}

func TestRunDependencyMissing(t *testing.T) {
	fake := execx.NewFake()
	tr, out := newTestTrigger(fake, "y\n", false)

	err := tr.Run(context.Background(), "1.2.0-nightly.20250307")
	require.ErrorIs(t, err, ErrDependencyMissing)
	assert.Equal(t, OutcomeDependencyMissing, OutcomeOf(err))
	assert.Contains(t, out.String(), "https://github.com/OpenSurface/SonosESP/actions/workflows/nightly-release.yml")
	assert.Contains(t, out.String(), "version_tag: 1.2.0-nightly.20250307")
	assert.NotContains(t, out.String(), "Continue?")
}

func TestRunWorkflowFailure(t *testing.T) {
	fake := execx.NewFake().
		On("gh --version", "gh version 2.62.0\n").
		Fail("gh workflow run nightly-release.yml -f version_tag=1.2.0-nightly.20250307", 1,
			"HTTP 422: Workflow does not have 'workflow_dispatch' trigger\n")
	tr, _ := newTestTrigger(fake, "", true)

	err := tr.Run(context.Background(), "1.2.0-nightly.20250307")
	require.Error(t, err)

	var wfErr *WorkflowTriggerError
	require.True(t, errors.As(err, &wfErr))
	assert.Equal(t, "HTTP 422: Workflow does not have 'workflow_dispatch' trigger\n", wfErr.Stderr)
	assert.Equal(t, OutcomeFailed, OutcomeOf(err))

	// exactly one attempt
	assert.Len(t, fake.Calls(), 2)
}

func TestDispatchArgsWithExtras(t *testing.T) {
	tr := NewTrigger(Options{
		CLI:       "gh",
		Workflow:  "nightly-release.yml",
		Input:     "version_tag",
		ExtraArgs: []string{"--ref", "develop"},
	}, execx.NewFake(), nil, nil, nil)

	assert.Equal(t,
		[]string{"workflow", "run", "nightly-release.yml", "-f", "version_tag=1.0.0-nightly.x", "--ref", "develop"},
		tr.DispatchArgs("1.0.0-nightly.x"))
}

func TestReleaserUsesStoredVersion(t *testing.T) {
	store := filepath.Join(t.TempDir(), "version.json")
	require.NoError(t, os.WriteFile(store, []byte(`{"version": "1.2.0"}`), 0644))

	fake := execx.NewFake().
		On("gh --version", "gh version 2.62.0\n").
		On("gh workflow run nightly-release.yml -f version_tag=1.2.0-nightly.20250307", "")
	tr, _ := newTestTrigger(fake, "", true)

	r := &Releaser{StorePath: store, StoreKey: "version", Identifier: DateIdentifier(fixedNow), Trigger: tr}
	tag, err := r.Release(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0-nightly.20250307", tag)
}

func TestReleaserMissingStore(t *testing.T) {
	tr, _ := newTestTrigger(execx.NewFake(), "", true)
	r := &Releaser{StorePath: filepath.Join(t.TempDir(), "version.json"), StoreKey: "version", Identifier: DateIdentifier(fixedNow), Trigger: tr}

	_, err := r.Release(context.Background(), "")
	assert.ErrorIs(t, err, sink.ErrSinkMissing)

	tag, err := r.ResolveTag(context.Background(), "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0-nightly.20250307", tag)
}
