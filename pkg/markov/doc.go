/*
Package markov provides a database-backed toolkit for creating, training, and
using Markov chain models in Go.

Models live in a SQLite database and share a single vocabulary. Training is
transactional, and generation is a frequency-weighted random walk from the
start-of-chain boundary to the end-of-chain boundary. Temperature, top-K,
step limits, strict termination and an injectable random source are all
available as GenerateOption values.

LineTokenizer trains one chain per input line, which is the mode used to
synthesize prose from a corpus of sentences.
*/
package markov
