package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Contact log S1",
		Headers: []string{"Date", "Sender", "Message"},
		Rows: [][]string{
			{"2026/10/01", "Ms. Sato", "Bring gym clothes, please"},
			{"2026/10/02", "Ms. Sato", ""},
		},
	}
}

func TestCSVExporterWritesBOMAndRows(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, utf8BOM))
	body := string(out[len(utf8BOM):])
	assert.Equal(t, "Date,Sender,Message\n2026/10/01,Ms. Sato,\"Bring gym clothes, please\"\n2026/10/02,Ms. Sato,\n", body)
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	data := sampleDataset()
	data.Rows = append(data.Rows, []string{"only-one"})
	_, err := NewCSVExporter().Render(data)
	assert.Error(t, err)
}

func TestPDFExporterProducesDocument(t *testing.T) {
	out, err := NewPDFExporter("").Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter("").Render(Dataset{})
	assert.Error(t, err)
}
