package rewrite

import "github.com/aymerick/raymond"

// The emitted pages are deliberately plain: a static frameset wrapper, a
// list-based contents pane, and a list of topic links. Styling hooks are
// class names only, so a site can restyle without touching the generator.

var wrapperTpl = raymond.MustParse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{title}}</title>
</head>
<frameset cols="250,*">
<frame name="chmweb-contents" src="{{tocHref}}">
<frame name="chmweb-content" src="{{contentHref}}">
<noframes>
<body>
<p><a href="{{contentHref}}">{{title}}</a></p>
</body>
</noframes>
</frameset>
</html>
`)

var tocTpl = raymond.MustParse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{title}}</title>
<style>
body { font-family: sans-serif; font-size: 90%; }
ul.chmweb-toc, ul.chmweb-toc ul { list-style: none; padding-left: 1.2em; }
li.chmweb-current > a, li.chmweb-current > span { font-weight: bold; }
</style>
</head>
<body>
{{{body}}}
</body>
</html>
`)

var resolutionTpl = raymond.MustParse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{title}}</title>
</head>
<body>
<h1>{{title}}</h1>
<ul class="chmweb-topic-list">
{{#each items}}
<li><a href="{{href}}" target="_top">{{name}}</a></li>
{{/each}}
</ul>
</body>
</html>
`)

var frontTpl = raymond.MustParse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{title}}</title>
</head>
<body>
{{{body}}}
</body>
</html>
`)
