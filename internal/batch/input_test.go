package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRecipientsCSV(t *testing.T) {
	path := writeInput(t, "recipients.csv",
		"first_name,last_name,course\nJohn,Doe,Go 101\nJane,Smith,\n")

	recs, err := LoadRecipients(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "John", recs[0].FirstName)
	assert.Equal(t, "Doe", recs[0].LastName)
	assert.Equal(t, "Go 101", recs[0].ExtraFields["course"])

	assert.Equal(t, "Jane", recs[1].FirstName)
	assert.Nil(t, recs[1].ExtraFields)
}

func TestLoadRecipientsCSVHeaderAliases(t *testing.T) {
	path := writeInput(t, "recipients.csv", "First,Surname\nJohn,Doe\n")

	recs, err := LoadRecipients(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "John", recs[0].FirstName)
	assert.Equal(t, "Doe", recs[0].LastName)
}

func TestLoadRecipientsCSVMissingNameColumns(t *testing.T) {
	path := writeInput(t, "recipients.csv", "email,course\na@b.c,Go 101\n")

	_, err := LoadRecipients(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first and last name")
}

func TestLoadRecipientsJSONL(t *testing.T) {
	path := writeInput(t, "recipients.jsonl",
		`{"first_name":"John","last_name":"Doe"}
# comment

{"first_name":"Jane","last_name":"Smith","extra_fields":{"date":"July 04, 2025"}}
`)

	recs, err := LoadRecipients(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "John", recs[0].FirstName)
	assert.Equal(t, "July 04, 2025", recs[1].ExtraFields["date"])
}

func TestLoadRecipientsJSONLBadLine(t *testing.T) {
	path := writeInput(t, "recipients.jsonl", "{not json}\n")

	_, err := LoadRecipients(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestLoadRecipientsMissingFile(t *testing.T) {
	_, err := LoadRecipients(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}
