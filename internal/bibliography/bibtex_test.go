// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibliography

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/arxiv-registry/internal/registry"
	"github.com/pdiddy/arxiv-registry/pkg/types"
)

func ddpm() types.Item {
	return types.Item{
		ExternalID: "2006.11239",
		Metadata: types.Metadata{
			Title:    types.Ptr("Denoising Diffusion  Probabilistic Models"),
			Authors:  []string{"Jonathan Ho", "Ajay Jain", "Pieter Abbeel"},
			Year:     types.Ptr(2020),
			Category: types.Ptr("cs.LG"),
		},
	}
}

const ddpmBib = `@misc{ho2020denoising,
  author = {Jonathan Ho and Ajay Jain and Pieter Abbeel},
  title = {Denoising Diffusion Probabilistic Models},
  year = {2020},
  eprint = {2006.11239},
  archivePrefix = {arXiv},
  primaryClass = {cs.LG},
  url = {https://arxiv.org/abs/2006.11239}
}
`

func TestRenderMisc(t *testing.T) {
	e, err := Render(ddpm(), "ho2020denoising", types.ExportConfig{})
	require.NoError(t, err)
	assert.Equal(t, ddpmBib, e.Text)
	assert.Equal(t, types.EntryMisc, e.EntryType)
	assert.Equal(t, "ho2020denoising", e.Key)
	assert.Equal(t, "2006.11239", e.ExternalID)
}

func TestRenderIsByteIdentical(t *testing.T) {
	cfg := types.ExportConfig{Escape: types.EscapeLaTeX}
	a, err := Render(ddpm(), "ho2020denoising", cfg)
	require.NoError(t, err)
	b, err := Render(ddpm(), "ho2020denoising", cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Text, b.Text)
}

func TestInferEntryType(t *testing.T) {
	tests := []struct {
		venue string
		want  types.EntryType
	}{
		{"", types.EntryMisc},
		{"   ", types.EntryMisc},
		{"Nature 521, 436-444 (2015)", types.EntryArticle},
		{"Phys. Rev. D 101, 012345", types.EntryArticle},
		{"Proceedings of NeurIPS 2020", types.EntryInProceedings},
		{"ICML 2021", types.EntryInProceedings},
		{"Workshop on Deep Learning", types.EntryInProceedings},
	}
	for _, tt := range tests {
		t.Run(tt.venue, func(t *testing.T) {
			assert.Equal(t, tt.want, InferEntryType(types.Metadata{Venue: types.Ptr(tt.venue)}))
		})
	}
}

func TestRenderJournalAndConference(t *testing.T) {
	item := ddpm()
	item.Metadata.Venue = types.Ptr("Advances in Neural Information Processing Systems 33 (NeurIPS 2020)")
	item.Metadata.DOI = types.Ptr("10.5555/3495724.3496298")

	e, err := Render(item, "ho2020denoising", types.ExportConfig{})
	require.NoError(t, err)
	assert.Equal(t, types.EntryInProceedings, e.EntryType)
	assert.Contains(t, e.Text, "@inproceedings{ho2020denoising,\n")
	assert.Contains(t, e.Text, "  booktitle = {Advances in Neural Information Processing Systems 33 (NeurIPS 2020)},\n")
	assert.Contains(t, e.Text, "  doi = {10.5555/3495724.3496298},\n")

	item.Metadata.Venue = types.Ptr("Nature 521, 436 (2015)")
	e, err = Render(item, "ho2020denoising", types.ExportConfig{})
	require.NoError(t, err)
	assert.Equal(t, types.EntryArticle, e.EntryType)
	assert.Contains(t, e.Text, "  journal = {Nature 521, 436 (2015)},\n")
}

func TestRenderEscaping(t *testing.T) {
	item := ddpm()
	item.Metadata.Title = types.Ptr(`R&D at 100% with $x_1$ {braces} \ and ~^#`)

	e, err := Render(item, "k", types.ExportConfig{Escape: types.EscapeLaTeX})
	require.NoError(t, err)
	assert.Contains(t, e.Text,
		`title = {R\&D at 100\% with \$x\_1\$ \textbraceleft{}braces\textbraceright{} \textbackslash{} and \textasciitilde{}\textasciicircum{}\#}`)

	e, err = Render(item, "k", types.ExportConfig{Escape: types.EscapeNone})
	require.NoError(t, err)
	assert.Contains(t, e.Text, `title = {R&D at 100% with $x_1$ {braces} \ and ~^#}`)
}

func TestRenderMissingRequired(t *testing.T) {
	item := ddpm()
	item.Metadata.Authors = nil
	_, err := Render(item, "k", types.ExportConfig{})
	require.ErrorIs(t, err, registry.ErrMetadataIncomplete)
	assert.Contains(t, err.Error(), "author")

	// Forcing article on a preprint needs a journal.
	_, err = Render(ddpm(), "k", types.ExportConfig{EntryType: types.EntryArticle})
	require.ErrorIs(t, err, registry.ErrMetadataIncomplete)
	assert.Contains(t, err.Error(), "journal")
}

func TestRenderConfigErrors(t *testing.T) {
	_, err := Render(ddpm(), "k", types.ExportConfig{Escape: "html"})
	require.Error(t, err)

	_, err = Render(ddpm(), "k", types.ExportConfig{EntryType: "book"})
	require.Error(t, err)

	_, err = Render(ddpm(), "", types.ExportConfig{})
	require.Error(t, err)

	_, err = Render(ddpm(), "k", types.ExportConfig{Fields: map[types.EntryType]types.FieldSet{
		types.EntryMisc: {Required: []string{"title", "isbn"}},
	}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, registry.ErrMetadataIncomplete)
}

func TestRenderCustomFieldSet(t *testing.T) {
	item := ddpm()
	item.Metadata.Abstract = types.Ptr("We present results.")
	e, err := Render(item, "k", types.ExportConfig{Fields: map[types.EntryType]types.FieldSet{
		types.EntryMisc: {Required: []string{"title"}, Optional: []string{"abstract", "doi"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, "@misc{k,\n  title = {Denoising Diffusion Probabilistic Models},\n  abstract = {We present results.}\n}\n", e.Text)
}

func TestToCSL(t *testing.T) {
	c := ToCSL(ddpm(), "ho2020denoising")
	assert.Equal(t, "ho2020denoising", c.ID)
	assert.Equal(t, "article", c.Type)
	assert.Equal(t, "arXiv", c.Publisher)
	assert.Equal(t, "2006.11239", c.Number)
	require.Len(t, c.Author, 3)
	assert.Equal(t, CSLName{Given: "Jonathan", Family: "Ho"}, c.Author[0])
	require.NotNil(t, c.Issued)
	assert.Equal(t, [][]int{{2020}}, c.Issued.DateParts)

	item := ddpm()
	item.Metadata.Venue = types.Ptr("Nature 521 (2015)")
	item.Metadata.Authors = []string{"Hinton, Geoffrey", "Plato"}
	c = ToCSL(item, "")
	assert.Equal(t, "2006.11239", c.ID)
	assert.Equal(t, "article-journal", c.Type)
	assert.Equal(t, "Nature 521 (2015)", c.ContainerTitle)
	assert.Equal(t, []CSLName{{Family: "Hinton", Given: "Geoffrey"}, {Literal: "Plato"}}, c.Author)

	var buf bytes.Buffer
	require.NoError(t, WriteCSL(&buf, []CSLItem{c}))
	assert.Contains(t, buf.String(), "family: Hinton")
	assert.Contains(t, buf.String(), "container-title: Nature 521 (2015)")
}
