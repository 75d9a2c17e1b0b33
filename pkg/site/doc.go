// Package site assembles and writes a static honeypot site: pages of
// Markov-generated prose that link to one another, plus a robots.txt.
package site
