package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<html><body>
<div id="leftZhankai">
  <div class="sons"><div class="cont">
    <p><a><b> 静夜思 </b></a></p>
    <p class="source"><a>李白</a><a>〔唐代〕</a></p>
    <div class="contson">
      床前明月光，疑是地上霜。举头望明月，低头思故乡。
    </div>
  </div></div>
  <div class="sons"><div class="cont">
    <p>望庐山瀑布</p>
    <div class="contson">日照香炉生紫烟，遥看瀑布挂前川。</div>
    <p>李白〔唐代〕</p>
  </div></div>
</div>
</body></html>`

func TestExtractListing(t *testing.T) {
	doc, err := ParseDocument([]byte(listingPage))
	require.NoError(t, err)

	poems, err := ExtractListing(doc)
	require.NoError(t, err)
	require.Len(t, poems, 2)

	assert.Equal(t, "静夜思", poems[0].Title)
	assert.Equal(t, "李白〔唐代〕", poems[0].Era)
	assert.Equal(t, "床前明月光，疑是地上霜。举头望明月，低头思故乡。", poems[0].Body)

	assert.Equal(t, "望庐山瀑布", poems[1].Title)
	assert.Equal(t, "李白〔唐代〕", poems[1].Era, "era is the last label of the item")
}

func TestExtractListingEmptyContainer(t *testing.T) {
	doc, err := ParseDocument([]byte(`<div id="leftZhankai"></div>`))
	require.NoError(t, err)

	poems, err := ExtractListing(doc)
	require.NoError(t, err)
	assert.Empty(t, poems)
}

func TestExtractListingFailures(t *testing.T) {
	tests := []struct {
		name  string
		html  string
		field string
		item  int
	}{
		{
			name:  "no container",
			html:  `<div id="other"></div>`,
			field: "listing container",
			item:  -1,
		},
		{
			name:  "no content node",
			html:  `<div id="leftZhankai"><div class="sons"><p>x</p></div></div>`,
			field: "content",
			item:  0,
		},
		{
			name: "no body on second item",
			html: `<div id="leftZhankai">
<div class="sons"><div class="cont"><p>a</p><p>b</p><div class="contson">c</div></div></div>
<div class="sons"><div class="cont"><p>a</p><p>b</p></div></div></div>`,
			field: "body",
			item:  1,
		},
		{
			name:  "blank title",
			html:  `<div id="leftZhankai"><div class="sons"><div class="cont"><p> </p><p>b</p><div class="contson">c</div></div></div></div>`,
			field: "title",
			item:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseDocument([]byte(tt.html))
			require.NoError(t, err)

			_, err = ExtractListing(doc)
			var extractErr *ExtractionError
			require.True(t, errors.As(err, &extractErr), "expected ExtractionError, got %v", err)
			assert.Equal(t, tt.field, extractErr.Field)
			assert.Equal(t, tt.item, extractErr.Item)
		})
	}
}

func TestExtractHarvestLinks(t *testing.T) {
	html := `<html><body>
<div class="typecont"><a href="/shiwenv_1.aspx">关雎</a><a href="/shiwenv_2.aspx">葛覃</a></div>
<div class="other"><a href="/ignored.aspx">x</a></div>
<div class="typecont"><span><a href="/shiwenv_3.aspx">卷耳</a></span><a href="/shiwenv_1.aspx">关雎</a></div>
</body></html>`
	doc, err := ParseDocument([]byte(html))
	require.NoError(t, err)

	links, err := ExtractHarvestLinks(doc, "http://example.test")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://example.test/shiwenv_1.aspx",
		"http://example.test/shiwenv_2.aspx",
		"http://example.test/shiwenv_3.aspx",
		"http://example.test/shiwenv_1.aspx",
	}, links)
}

func TestExtractHarvestLinksFailures(t *testing.T) {
	for name, html := range map[string]string{
		"no groups":    `<div><a href="/a.aspx">a</a></div>`,
		"missing href": `<div class="typecont"><a>a</a></div>`,
	} {
		t.Run(name, func(t *testing.T) {
			doc, err := ParseDocument([]byte(html))
			require.NoError(t, err)

			_, err = ExtractHarvestLinks(doc, "http://example.test")
			var extractErr *ExtractionError
			assert.True(t, errors.As(err, &extractErr), "expected ExtractionError, got %v", err)
		})
	}
}

func TestExtractDetail(t *testing.T) {
	html := `<div id="sonsyuanwen"><div class="cont">
<h1> 关雎 </h1>
<p class="source"><a>佚名</a> <a>〔先秦〕</a></p>
<div class="contson">关关雎鸠，在河之洲。窈窕淑女，君子好逑。</div>
</div></div>`
	doc, err := ParseDocument([]byte(html))
	require.NoError(t, err)

	poem, err := ExtractDetail(doc)
	require.NoError(t, err)
	assert.Equal(t, "关雎", poem.Title)
	assert.Equal(t, "佚名 〔先秦〕", poem.Era)
	assert.Equal(t, "关关雎鸠，在河之洲。窈窕淑女，君子好逑。", poem.Body)
}

func TestExtractDetailMissingEra(t *testing.T) {
	doc, err := ParseDocument([]byte(`<div id="sonsyuanwen"><h1>关雎</h1><div class="contson">x</div></div>`))
	require.NoError(t, err)

	_, err = ExtractDetail(doc)
	var extractErr *ExtractionError
	require.True(t, errors.As(err, &extractErr))
	assert.Equal(t, "era", extractErr.Field)
}
