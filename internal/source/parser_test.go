package source

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovalyov-valentin/rss-collector/internal/model"
)

const rssSample = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Search results</title>
<link>https://news.google.com/search?q=gold</link>
<item>
<title>Gold prices hit a fresh record high</title>
<link>https://example.com/articles/gold-record</link>
<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
<source url="https://example.com">Example Times</source>
<description>&lt;p&gt;Gold   surged&lt;/p&gt; past &amp;amp; beyond</description>
</item>
<item>
<title>Central banks keep buying gold</title>
<link>https://example.com/articles/banks</link>
<pubDate>Tue, 03 Jan 2006 10:00:00 GMT</pubDate>
<description>Steady demand</description>
</item>
</channel>
</rss>`

const atomSample = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>search feed</title>
<link href="https://example.org/feed"/>
<entry>
<title>Solar output reaches new peak</title>
<link href="https://example.org/solar"/>
<published>2024-03-10T08:00:00Z</published>
<updated>2024-03-11T09:00:00Z</updated>
<summary>Short summary text</summary>
</entry>
</feed>`

func TestParse_RSS(t *testing.T) {
	res := Parse([]byte(rssSample), "gold")

	assert.Equal(t, "gold", res.Query)
	assert.Equal(t, "https://news.google.com/search?q=gold", res.SourceURL)
	require.Len(t, res.Articles, 2)

	a := res.Articles[0]
	assert.Equal(t, "Gold prices hit a fresh record high", a.Title)
	assert.Equal(t, "https://example.com/articles/gold-record", a.Link)
	assert.Equal(t, "2006-01-02T15:04:05Z", a.Published)
	assert.Equal(t, "Example Times", a.Source)
	assert.Equal(t, "Gold surged past beyond", a.Snippet)
	assert.Equal(t, model.Fingerprint("Gold prices hit a fresh record high", "Mon, 02 Jan 2006 15:04:05 GMT"), a.IDHash)

	// Метка времени нормализации проставлена и читается обратно
	_, err := time.Parse("2006-01-02T15:04:05Z", res.FetchedAt)
	require.NoError(t, err)
}

func TestParse_Atom(t *testing.T) {
	res := Parse([]byte(atomSample), "solar")

	assert.Equal(t, "https://example.org/feed", res.SourceURL)
	require.Len(t, res.Articles, 1)

	a := res.Articles[0]
	assert.Equal(t, "https://example.org/solar", a.Link)
	assert.Equal(t, "Short summary text", a.Snippet)

	// published приоритетнее updated, и для даты в записи, и для отпечатка
	assert.Equal(t, "2024-03-10T08:00:00Z", a.Published)
	assert.Equal(t, model.Fingerprint("Solar output reaches new peak", "2024-03-10T08:00:00Z"), a.IDHash)
}

func TestParse_DateFallsBackToUpdated(t *testing.T) {
	raw := `<rss><channel><item>
<title>Long enough title here</title>
<link>https://example.com/x</link>
<updated>2024-01-01T00:00:00Z</updated>
</item></channel></rss>`

	res := Parse([]byte(raw), "q")

	require.Len(t, res.Articles, 1)
	assert.Equal(t, "2024-01-01T00:00:00Z", res.Articles[0].Published)
}

func TestParse_UnparseableDateKeptAsIs(t *testing.T) {
	raw := `<rss><channel><item>
<title>Long enough title here</title>
<link>https://example.com/x</link>
<pubDate>sometime around noon</pubDate>
</item></channel></rss>`

	res := Parse([]byte(raw), "q")

	require.Len(t, res.Articles, 1)
	assert.Equal(t, "sometime around noon", res.Articles[0].Published)
}

func TestParse_TitleLengthBoundary(t *testing.T) {
	tmpl := `<rss><channel><item>
<title>%s</title>
<link>https://example.com/x</link>
</item></channel></rss>`

	// 9 символов - мусор, 10 - уже статья
	res := Parse([]byte(fmt.Sprintf(tmpl, "123456789")), "q")
	assert.Empty(t, res.Articles)

	res = Parse([]byte(fmt.Sprintf(tmpl, "1234567890")), "q")
	assert.Len(t, res.Articles, 1)
}

func TestParse_SourceFromCategoryTag(t *testing.T) {
	raw := `<rss><channel><item>
<title>Long enough title here</title>
<link>https://example.com/x</link>
<category>NewsSource</category>
</item></channel></rss>`

	res := Parse([]byte(raw), "q")

	require.Len(t, res.Articles, 1)
	assert.Equal(t, "NewsSource", res.Articles[0].Source)
}

func TestParse_SnippetFromContentBlock(t *testing.T) {
	raw := `<feed><entry>
<title>Long enough title here</title>
<link href="https://example.org/x"/>
<content>First block</content>
<content>Second block</content>
</entry></feed>`

	res := Parse([]byte(raw), "q")

	require.Len(t, res.Articles, 1)
	assert.Equal(t, "First block", res.Articles[0].Snippet)
}

func TestParse_InvalidXML(t *testing.T) {
	res := Parse([]byte("definitely not xml <"), "q")

	assert.Equal(t, "q", res.Query)
	assert.Empty(t, res.SourceURL)
	assert.Empty(t, res.Articles)
	assert.NotEmpty(t, res.FetchedAt)
}

func TestParse_FeedWithoutEntries(t *testing.T) {
	raw := `<rss><channel><link>https://example.com/feed</link></channel></rss>`

	res := Parse([]byte(raw), "q")

	// Без единой записи лента не объявляет и свой URL
	assert.Empty(t, res.SourceURL)
	assert.Empty(t, res.Articles)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "tags stripped", in: "<p>Hello <b>world</b></p>", want: "Hello world"},
		{name: "entities stripped", in: "fish &amp; chips &#8217; done", want: "fish chips done"},
		{name: "whitespace collapsed", in: "  a\n\n b\t\tc ", want: "a b c"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanText(tt.in, snippetMaxLen))
		})
	}
}

func TestCleanText_Truncation(t *testing.T) {
	long := strings.Repeat("word ", 100)

	got := cleanText(long, snippetMaxLen)

	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len([]rune(got)), snippetMaxLen+3)
}
