// Package corpus turns seed text into the ordered list of training lines the
// chain model learns from. Plain text, Markdown and HTML sources are supported,
// and a small built-in corpus of Harvard sentences is available through Default.
package corpus
