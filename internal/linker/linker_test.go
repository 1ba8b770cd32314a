package linker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"declink/internal/record"
	"declink/internal/taskindex"
)

var testSchema = record.Schema{Filename: 0, Email: 1, Name: 2, NonHashable: []int{0, 1}}

func newTestLinker(t *testing.T, tasks, users string) *Linker {
	t.Helper()
	ref, err := taskindex.ParseReference(strings.NewReader(tasks))
	require.NoError(t, err)
	u, err := taskindex.ParseUserTasks(strings.NewReader(users))
	require.NoError(t, err)
	return New(testSchema, ref, u, Options{})
}

const refTasks = "tasks/Ivanenko_O.pdf\ntasks/Ivanov.pdf\na/Bondar.pdf\nb/bondar.PDF\n"

func TestLinkRejectsRowWithoutIdentity(t *testing.T) {
	l := newTestLinker(t, refTasks, "")
	_, err := l.Link(7, []string{"", "a@b.c", "", "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRow))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonNoIdentity, verr.Reason)
	assert.Equal(t, 7, verr.Line)
	assert.Contains(t, err.Error(), "line 7")
}

func TestLinkShortNameWithoutBucket(t *testing.T) {
	l := newTestLinker(t, refTasks, "")
	_, err := l.Link(1, []string{"zzz.pdf", "", "Олена"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonNoLinkSignal, verr.Reason)
}

func TestLinkLongNameWithoutBucketSurvives(t *testing.T) {
	l := newTestLinker(t, refTasks, "")
	rec, err := l.Link(1, []string{"zzz.pdf", "", "Бондар Ірина"})
	require.NoError(t, err)
	assert.Equal(t, "", rec.Link)
	assert.False(t, rec.Ambiguous)
	assert.True(t, rec.NotFoundInUserTasks)
	assert.NotEmpty(t, rec.Hash)
}

func TestLinkGlobalReference(t *testing.T) {
	l := newTestLinker(t, refTasks, "")
	rec, err := l.Link(3, []string{"Ivanenko O.pdf", " A@B.c ", "іваненко олена петрівна"})
	require.NoError(t, err)

	assert.Equal(t, "tasks/Ivanenko_O.pdf", rec.Link)
	assert.Equal(t, 3, rec.Line)
	assert.Equal(t, "ivanenko_o", rec.Cells[0])
	assert.Equal(t, "a@b.c", rec.Cells[1])
	assert.Equal(t, "Іваненко Олена Петрівна", rec.Cells[2])
	assert.Equal(t, "Іваненко Олена Петрівна", rec.NameNormalized)
	assert.False(t, rec.NameTroublesome)
	assert.True(t, rec.NotFoundInUserTasks)
	assert.False(t, rec.Ambiguous)
}

func TestLinkPrefersUserTasks(t *testing.T) {
	users := `{"email": "a@b.c", "files": ["user/Ivanenko_O.pdf"]}` + "\n" +
		`{"email": "c@d.e", "files": ["user/Kovalenko.pdf"]}`
	l := newTestLinker(t, refTasks, users)

	rec, err := l.Link(1, []string{"ivanenko_o", "a@b.c", "Іваненко Олена"})
	require.NoError(t, err)
	assert.Equal(t, "user/Ivanenko_O.pdf", rec.Link)
	assert.False(t, rec.NotFoundInUserTasks)

	// Known user without the prefix falls back to the global list.
	rec, err = l.Link(2, []string{"ivanenko_o", "c@d.e", "Іваненко Олена"})
	require.NoError(t, err)
	assert.Equal(t, "tasks/Ivanenko_O.pdf", rec.Link)
	assert.True(t, rec.NotFoundInUserTasks)
}

func TestLinkAmbiguousAndTieBreak(t *testing.T) {
	l := newTestLinker(t, refTasks, "")
	rec, err := l.Link(1, []string{"Bondar", "", "Бондар Ірина Іванівна"})
	require.NoError(t, err)
	// Both candidates score 1.0; the greater task string wins.
	assert.Equal(t, "b/bondar.PDF", rec.Link)
	assert.True(t, rec.Ambiguous)

	again, err := l.Link(1, []string{"Bondar", "", "Бондар Ірина Іванівна"})
	require.NoError(t, err)
	assert.Equal(t, rec.Link, again.Link)
	assert.Equal(t, rec.Ambiguous, again.Ambiguous)
	assert.Equal(t, rec.Hash, again.Hash)
}

func TestLinkAmbiguousThroughUserTasks(t *testing.T) {
	users := `{"email": "a@b.c", "files": ["user/Bondar.pdf", "user/Ivanenko_O.pdf"]}`
	l := newTestLinker(t, refTasks, users)

	rec, err := l.Link(1, []string{"bondar", "a@b.c", "Бондар Ірина Іванівна"})
	require.NoError(t, err)
	assert.Equal(t, "user/Bondar.pdf", rec.Link)
	assert.False(t, rec.NotFoundInUserTasks)
	assert.True(t, rec.Ambiguous, "the global list holds bondar twice")

	rec, err = l.Link(2, []string{"ivanenko_o", "a@b.c", "Іваненко Олена"})
	require.NoError(t, err)
	assert.Equal(t, "user/Ivanenko_O.pdf", rec.Link)
	assert.False(t, rec.Ambiguous)
}

func TestLinkPicksMostSimilar(t *testing.T) {
	l := newTestLinker(t, "x/ivanenko.pdf\nx/ivanov.pdf\nx/ivashko.pdf\n", "")
	rec, err := l.Link(1, []string{"ivanov_", "", "Іванов Петро Іванович"})
	require.NoError(t, err)
	assert.Equal(t, "x/ivanov.pdf", rec.Link)
}

func TestLinkNameNormalization(t *testing.T) {
	l := newTestLinker(t, refTasks, "")
	rec, err := l.Link(1, []string{"ivanov", "", "ІВАНОВ петро-павло (old) іванович марія"})
	require.NoError(t, err)
	assert.Equal(t, "Іванов Петро-Павло Іванович", rec.NameNormalized)
	assert.True(t, rec.NameTroublesome)
}

func TestLinkDoesNotModifyInput(t *testing.T) {
	l := newTestLinker(t, refTasks, "")
	cells := []string{"Ivanov.pdf", "A@B.C", "іванов петро іванович"}
	_, err := l.Link(1, cells)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ivanov.pdf", "A@B.C", "іванов петро іванович"}, cells)
}

func TestLinkWidensShortRows(t *testing.T) {
	l := newTestLinker(t, refTasks, "")
	rec, err := l.Link(1, []string{"ivanov"})
	require.NoError(t, err)
	assert.Len(t, rec.Cells, 3)
	assert.Equal(t, "tasks/Ivanov.pdf", rec.Link)
}

func TestFingerprint(t *testing.T) {
	l := newTestLinker(t, refTasks, "")
	a, err := l.Link(1, []string{"ivanov", "a@b.c", "Іванов Петро Іванович", "100.00"})
	require.NoError(t, err)
	b, err := l.Link(2, []string{"ivanov.pdf", "x@y.z", "Іванов Петро Іванович", "100.00"})
	require.NoError(t, err)
	c, err := l.Link(3, []string{"ivanov", "a@b.c", "Іванов Петро Іванович", "200.00"})
	require.NoError(t, err)

	assert.Equal(t, a.Hash, b.Hash, "technical columns must not affect the fingerprint")
	assert.NotEqual(t, a.Hash, c.Hash)
	assert.Equal(t, a.Hash, l.Fingerprint(a))
}

func TestLinkAll(t *testing.T) {
	l := newTestLinker(t, refTasks, "")
	trim := func(cells []string) []string {
		out := make([]string, len(cells))
		for i, c := range cells {
			out[i] = strings.TrimSpace(c)
		}
		return out
	}
	res := l.LinkAll([][]string{
		{" ivanov ", "", "Іванов Петро Іванович"},
		{" ", "", " "},
		{"zzz", "", "Олена"},
	}, trim)

	require.Len(t, res.Accepted, 1)
	require.Len(t, res.Invalid, 2)
	assert.Equal(t, 1, res.Accepted[0].Line)
	assert.Equal(t, record.Invalid{Line: 2, Reason: string(ReasonNoIdentity), Cells: []string{" ", "", " "}}, res.Invalid[0])
	assert.Equal(t, string(ReasonNoLinkSignal), res.Invalid[1].Reason)
	assert.Equal(t, map[string]int{"no_identity": 1, "no_link_signal": 1}, res.Reasons())
}
