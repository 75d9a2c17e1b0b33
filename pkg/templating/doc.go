/*
Package templating renders the pages of a generated site with html/template.

A TemplateManager starts from a small set of embedded templates (page.tmpl.html
and the head and nav partials it includes) and, when a template directory is
configured, parses the *.tmpl.html and *.part.html files found there on top of
them. Any file sharing a name with a default replaces it, so a site can restyle
its pages without rebuilding the binary.

Page templates receive three values: .Title, .Paragraphs and .Links, where each
link carries a .Title and an .Address relative to the site root. The function map
adds href, inc, add, isSet, join, lang and siteName.
*/
package templating
