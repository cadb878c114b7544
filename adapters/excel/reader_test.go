package excel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gotrack/domain/core"
	"gotrack/domain/snapshot"
	"gotrack/internal"
)

func TestReadAnnotations_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.csv")
	content := "Edition,Gene,Term\n" +
		"1,TP53,GO:1\n" +
		"1,BRCA1,GO:1\n" +
		"2, TP53 ,GO:2\n" +
		"2,EGFR,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := NewDataReader(path, internal.NewDiscardLogger()).ReadAnnotations("")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.True(t, got[1]["GO:1"].Equal(core.NewSet[core.Entity]("TP53", "BRCA1")))
	assert.True(t, got[2]["GO:2"].Equal(core.NewSet[core.Entity]("TP53")))
	assert.Len(t, got[2], 1)
}

func TestReadAnnotations_Workbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"label", "entity", "edition"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"GO:7", "g1", 3}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"GO:7", "g2", 3}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	got, err := NewDataReader(path, internal.NewDiscardLogger()).ReadAnnotations("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, 2, got[snapshot.EditionID(3)]["GO:7"].Len())
}

func TestReadAnnotations_Errors(t *testing.T) {
	dir := t.TempDir()
	reader := func(name, content string) *DataReader {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return NewDataReader(path, internal.NewDiscardLogger())
	}

	_, err := reader("noedition.csv", "gene,term\ng1,GO:1\n").ReadAnnotations("")
	assert.ErrorContains(t, err, "no edition column")

	_, err = reader("badedition.csv", "edition,gene,term\nx,g1,GO:1\n").ReadAnnotations("")
	assert.ErrorContains(t, err, "row 2")

	_, err = reader("noentity.csv", "edition,gene,term\n1,,GO:1\n").ReadAnnotations("")
	assert.ErrorContains(t, err, "entity cannot be empty")

	_, err = NewDataReader(filepath.Join(dir, "missing.csv"), nil).ReadSheet("")
	assert.ErrorContains(t, err, "not found")
}
