// Package archive builds and opens image archives.
//
// An archive is a pair of artifacts in a storage.Store: a vector index
// (IndexKey) and a JSON record list (RecordsKey). Vector i and record i
// describe the same image. The Builder produces both from a directory of
// images in one pass and writes nothing unless at least one image was
// ingested; Open loads them and refuses a pair whose lengths disagree.
package archive
