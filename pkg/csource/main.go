// Package csource provides the C source model consumed by the instrumentation
// passes: a byte-offset lexer, a token-level preprocessor, a recursive-descent
// parser and a scope-resolving symbol table.
//
// Pipeline: C source → Lex → Preprocess → Parse → TranslationUnit
//
// Every token and node keeps the physical location of the text it came from,
// so rewrites can be spliced into the original file without re-printing it.
package csource
