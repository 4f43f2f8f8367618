package quiz

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const validQuizYAML = `
quiz:
  id: capitals
  name: "World Capitals"
  description: |
    Name the capital city.
  questions:
    - question: "Capital of France?"
      answers:
        - option: 1
          text: Paris
          correct: true
        - option: 2
          text: Lyon
    - question: "Capital of Japan?"
      body: "Hint: it hosted the 2020 Olympics."
      answers:
        - option: 1
          text: Osaka
        - option: 2
          text: Tokyo
          correct: true
        - option: 3
          text: Kyoto
`

func testQuiz() *Quiz {
	q, err := LoadFromBytes([]byte(validQuizYAML))
	if err != nil {
		panic(err)
	}
	return q
}

func TestLoadFromBytes_Valid(t *testing.T) {
	q, err := LoadFromBytes([]byte(validQuizYAML))
	require.NoError(t, err)

	assert.Equal(t, "capitals", q.ID)
	assert.Equal(t, "World Capitals", q.Name)
	assert.Equal(t, "Name the capital city.", q.Description)
	require.Len(t, q.Questions, 2)
	assert.Equal(t, "Hint: it hosted the 2020 Olympics.", q.Questions[1].Body)
	assert.Len(t, q.Questions[1].Answers, 3)
}

func TestLoadFromBytes_InvalidYAML(t *testing.T) {
	_, err := LoadFromBytes([]byte("quiz: [unterminated"))
	assert.Error(t, err)
}

func TestLoadFromBytes_NoCorrectAnswer(t *testing.T) {
	_, err := LoadFromBytes([]byte(`
quiz:
  id: broken
  name: Broken
  questions:
    - question: "Pick one"
      answers:
        - option: 1
          text: a
        - option: 2
          text: b
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must have a correct answer")
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	q := &Quiz{}
	err := q.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id must not be empty")
	assert.Contains(t, err.Error(), "name must not be empty")
	assert.Contains(t, err.Error(), "at least one question")
}

func TestValidate_DuplicateOption(t *testing.T) {
	q := testQuiz()
	q.Questions[0].Answers[1].Option = 1
	err := q.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate option 1")
}

func TestCheck(t *testing.T) {
	q := testQuiz()

	ok, err := q.Check(0, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.Check(1, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = q.Check(2, 1)
	assert.ErrorIs(t, err, ErrQuestionOutOfRange)

	_, err = q.Check(-1, 1)
	assert.ErrorIs(t, err, ErrQuestionOutOfRange)

	_, err = q.Check(0, 9)
	assert.ErrorIs(t, err, ErrUnknownOption)
}

func TestPlayer_Record(t *testing.T) {
	p := &Player{Name: "alice"}
	p.Record(true, 100)
	p.Record(true, 150)
	assert.Equal(t, 2, p.Correct)
	assert.Equal(t, 2, p.Streak)
	assert.Equal(t, 250, p.Points)

	p.Record(false, 0)
	assert.Equal(t, 1, p.Wrong)
	assert.Equal(t, 0, p.Streak)
	assert.Equal(t, 250, p.Points)
}

func TestFixedScorer(t *testing.T) {
	pts, err := FixedScorer{}.Score(true, 3)
	require.NoError(t, err)
	assert.Equal(t, DefaultPoints, pts)

	pts, err = FixedScorer{Points: 7}.Score(true, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, pts)

	pts, err = FixedScorer{Points: 7}.Score(false, 0)
	require.NoError(t, err)
	assert.Zero(t, pts)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "capitals.yaml"), []byte(validQuizYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	quizzes, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.Equal(t, "capitals", quizzes[0].ID)
}

func TestLoadDir_Missing(t *testing.T) {
	_, err := LoadDir("/nonexistent/quizzes")
	assert.Error(t, err)
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	c, err := NewCatalog([]*Quiz{testQuiz()})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	q, err := c.Get(ctx, "capitals")
	require.NoError(t, err)
	assert.Equal(t, "World Capitals", q.Name)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrQuizNotFound)

	assert.Error(t, c.Add(testQuiz()), "duplicate id must be rejected")

	other := testQuiz()
	other.ID = "atlas"
	require.NoError(t, c.Add(other))

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "atlas", list[0].ID)
	assert.Equal(t, "capitals", list[1].ID)
}

// Property: a player's points equal the sum of awarded points and
// correct+wrong equals the number of recorded answers.
func TestPropertyPlayerRecordTotals(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 50).Draw(t, "answers")
		p := &Player{}
		total := 0
		for i := 0; i < n; i++ {
			correct := rapid.Bool().Draw(t, "correct")
			pts := rapid.IntRange(0, 500).Draw(t, "points")
			p.Record(correct, pts)
			total += pts
		}
		if p.Points != total {
			t.Fatalf("points %d != %d", p.Points, total)
		}
		if p.Correct+p.Wrong != n {
			t.Fatalf("correct+wrong %d != %d", p.Correct+p.Wrong, n)
		}
		if p.Streak > p.Correct {
			t.Fatalf("streak %d exceeds correct %d", p.Streak, p.Correct)
		}
	})
}

func TestShippedQuizContentLoads(t *testing.T) {
	catalog, err := NewCatalogFromDir(filepath.Join("..", "..", "content", "quizzes"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, catalog.Len(), 2)

	q, err := catalog.Get(context.Background(), "capitals")
	require.NoError(t, err)
	correct, err := q.Check(0, 2)
	require.NoError(t, err)
	assert.True(t, correct)
}
