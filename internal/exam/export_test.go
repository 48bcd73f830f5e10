package exam_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindsprint/internal/exam"
)

func TestWriteResultCSV(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.start(t, "u1")
	_, err := f.engine.SubmitAnswer(ctx, a.ID, "u1", a.Items[0].QuestionID, "B")
	require.NoError(t, err)
	res, err := f.engine.Submit(ctx, a.ID, "u1")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, exam.WriteResultCSV(&buf, res))

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"test", "General"}, rows[0])
	assert.Equal(t, []string{"score", "1"}, rows[6])
	assert.Equal(t, []string{"percentage", "20.00"}, rows[8])
	assert.Equal(t, []string{"passed", "false"}, rows[9])
	assert.Equal(t, []string{"Math", "3", "1", "1", "1", "3", "33.33"}, rows[11])
	// summary, header, 2 categories, header, 5 questions
	assert.Len(t, rows, 10+1+2+1+5)
	assert.Equal(t, "1", rows[len(rows)-5][0])
	assert.Equal(t, "true", rows[len(rows)-5][4])
}
