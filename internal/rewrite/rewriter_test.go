package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solemnwarning/chmweb/internal/models"
	"github.com/solemnwarning/chmweb/internal/scan"
)

// rewriteWith scans a page and runs it through the rewriter, the same two
// passes production uses.
func rewriteWith(t *testing.T, env *testEnv, fsPath, src string) string {
	t.Helper()
	rec, err := scan.ScanPage([]byte(src), "book", fsPath)
	require.NoError(t, err)
	rec.FSPath = fsPath

	out, err := NewRewriter(env.resolver).RewritePage([]byte(src), rec)
	require.NoError(t, err)
	return string(out)
}

// Case normalisation: sibling attributes and their casing survive the
// splice untouched.
func TestRewriteCaseNormalisation(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.data.Reg.Add("book", ""))
	env.addAsset("html/fig6-2.gif")

	src := `<html><body><IMG BORDER=0 SRC="/HTML/Fig6-2.gif" ALT="Figure"></body></html>`
	out := rewriteWith(t, env, "html/chpt06-02.htm", src)

	assert.Equal(t, `<html><body><IMG BORDER=0 SRC="fig6-2.gif" ALT="Figure"></body></html>`, out)
}

func TestRewriteCrossDirectoryAbsolute(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.data.Reg.Add("book", ""))
	env.addAsset("html/fig6-2.gif")

	src := `<img src="/html/fig6-2.gif">`
	out := rewriteWith(t, env, "html2/html3/chpt06-02.htm", src)
	assert.Equal(t, `<img src="../../html/fig6-2.gif">`, out)
}

func TestRewriteAnchorGainsTarget(t *testing.T) {
	env := newTestEnv(t)
	env.addPage("html/target.htm", true)

	src := `<a href="target.htm">go</a>`
	out := rewriteWith(t, env, "html/source.htm", src)
	assert.Equal(t, `<a href="target.htm" target="_top">go</a>`, out)
}

func TestRewriteAnchorKeepsExistingTarget(t *testing.T) {
	env := newTestEnv(t)
	env.addPage("html/target.htm", true)

	src := `<a href="target.htm" target="main">go</a>`
	out := rewriteWith(t, env, "html/source.htm", src)
	assert.Equal(t, src, out)
}

func TestRewriteBrokenLinkBecomesHash(t *testing.T) {
	env := newTestEnv(t)

	src := `<a href="missing.htm">go</a>`
	out := rewriteWith(t, env, "page.htm", src)
	assert.Equal(t, `<a href="#">go</a>`, out)
	assert.NotEmpty(t, env.warnings)
}

func TestRewriteExternalUntouched(t *testing.T) {
	env := newTestEnv(t)
	src := `<a href="http://example.com/x">out</a><link rel="x" href="mailto:a@b">`
	out := rewriteWith(t, env, "page.htm", src)
	assert.Equal(t, src, out)
}

func TestRewriteStylesheetAndScript(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.data.Reg.Add("book", ""))
	env.addAsset("css/style.css")
	env.addAsset("js/code.js")

	src := `<link rel="stylesheet" href="/CSS/Style.css"><script src="/JS/Code.js"></script>`
	out := rewriteWith(t, env, "html/page.htm", src)
	assert.Equal(t, `<link rel="stylesheet" href="../css/style.css"><script src="../js/code.js"></script>`, out)
}

// ALink object with a single local topic: the whole object span becomes a
// plain anchor.
func TestRewriteTextObjectSingleTopic(t *testing.T) {
	env := newTestEnv(t)
	env.addPage("html/win95uititlepage.htm", true)
	env.ak.alinks.Add("msdn_win95uititlepage",
		models.Topic{Name: "Win95 UI", Local: "html/win95uititlepage.htm"})

	src := `<html><body><OBJECT type="application/x-oleobject" classid="clsid:adb880a6-d8ff-11cf-9377-00aa003b7a11">
<param name="Command" value="ALink">
<param name="Item2" value="msdn_win95uititlepage">
<param name="Text" value="Win95 UI Title Page">
</OBJECT></body></html>`

	out := rewriteWith(t, env, "page.htm", src)
	assert.Equal(t, `<html><body><a href="html/win95uititlepage.htm" target="_top">Win95 UI Title Page</a></body></html>`, out)
}

// ALink object with two topics: the anchor points at the resolution page
// and carries the marker class.
func TestRewriteTextObjectMultiTopic(t *testing.T) {
	env := newTestEnv(t)
	env.addPage("html/one.htm", true)
	env.addPage("html/two.htm", true)
	env.ak.alinks.Add("shared", models.Topic{Name: "One", Local: "html/one.htm"})
	env.ak.alinks.Add("shared", models.Topic{Name: "Two", Local: "html/two.htm"})

	src := `<object type="application/x-oleobject" classid="clsid:adb880a6-d8ff-11cf-9377-00aa003b7a11">
<param name="Command" value="ALink">
<param name="Item2" value="shared">
<param name="Text" value="Related">
</object>`

	out := rewriteWith(t, env, "page.htm", src)
	assert.Equal(t, `<a href="_alinks/shared.html" class="chmweb-multi-link">Related</a>`, out)
	assert.Contains(t, env.written, "_alinks/shared.html")
}

// A bare link-command object with no Text or Button leaves no residue.
func TestRewriteInvisibleObjectConsumed(t *testing.T) {
	env := newTestEnv(t)
	env.addPage("html/target.htm", true)
	env.ak.alinks.Add("kw", models.Topic{Name: "T", Local: "html/target.htm"})

	src := `<p>x</p><object id="alink1" type="application/x-oleobject" classid="clsid:adb880a6-d8ff-11cf-9377-00aa003b7a11">
<param name="Command" value="ALink">
<param name="Item2" value="kw">
</object><p>y</p>`

	out := rewriteWith(t, env, "page.htm", src)
	assert.Equal(t, `<p>x</p><p>y</p>`, out)
}

func TestRewriteClickThroughObject(t *testing.T) {
	env := newTestEnv(t)
	env.addPage("html/target.htm", true)
	env.ak.alinks.Add("kw", models.Topic{Name: "T", Local: "html/target.htm"})

	src := `<a href="JavaScript:alink1.Click()">follow</a><object id="alink1" type="application/x-oleobject" classid="clsid:adb880a6-d8ff-11cf-9377-00aa003b7a11">
<param name="Command" value="ALink">
<param name="Item2" value="kw">
</object>`

	out := rewriteWith(t, env, "page.htm", src)
	assert.Equal(t, `<a href="html/target.htm" target="_top">follow</a>`, out)
}

func TestRewriteButtonObject(t *testing.T) {
	env := newTestEnv(t)
	env.addPage("html/target.htm", true)
	env.ak.alinks.Add("kw", models.Topic{Name: "T", Local: "html/target.htm"})

	src := `<object type="application/x-oleobject" classid="clsid:adb880a6-d8ff-11cf-9377-00aa003b7a11">
<param name="Command" value="ALink">
<param name="Item2" value="kw">
<param name="Button" value="Text:See Also">
</object>`

	out := rewriteWith(t, env, "page.htm", src)
	assert.Equal(t, `<a href="html/target.htm" target="_top" class="chmweb-button chmweb-button-text">See Also</a>`, out)
}

func TestRewriteNonHelpObjectUntouched(t *testing.T) {
	env := newTestEnv(t)
	src := `<object type="image/svg+xml" data="pic.svg"><param name="x" value="y"></object>`
	out := rewriteWith(t, env, "page.htm", src)
	assert.Equal(t, src, out)
}

func TestRewriteMultiLinkClassAppended(t *testing.T) {
	env := newTestEnv(t)
	env.addPage("html/one.htm", true)
	env.addPage("html/two.htm", true)
	env.ak.alinks.Add("shared", models.Topic{Name: "One", Local: "html/one.htm"})
	env.ak.alinks.Add("shared", models.Topic{Name: "Two", Local: "html/two.htm"})

	src := `<a class="nav" href="JavaScript:alink1.Click()">see</a><object id="alink1" type="application/x-oleobject" classid="clsid:adb880a6-d8ff-11cf-9377-00aa003b7a11">
<param name="Command" value="ALink">
<param name="Item2" value="shared">
</object>`

	out := rewriteWith(t, env, "page.htm", src)
	assert.Equal(t, `<a class="nav chmweb-multi-link" href="_alinks/shared.html">see</a>`, out)
}
