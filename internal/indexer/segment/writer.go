// Package segment reads and writes shard files. A file is a 64-byte header,
// a postings region holding one JSON posting list per term, a JSON term
// dictionary sorted by term, and a 32-byte footer. The header, the postings
// region and the dictionary each carry a CRC32 so that truncated or damaged
// files are rejected with ErrCorruptShard instead of being half-read.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/index"
)

// MagicBytes identifies a valid .spdx shard file.
const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

// Header is the fixed-size header written at the start of every file.
//
//	[0:4]   magic            [4:8]   format version
//	[8:12]  term count       [12:16] document count
//	[16:24] dict offset      [24:32] dict size
//	[32:40] postings offset  [40:48] postings size
//	[48:56] created at (unix)
//	[56:58] posting schema   [58:59] shard key byte
//	[60:64] CRC32 of [0:60]
type Header struct {
	Magic         uint32
	Version       uint32
	TermCount     uint32
	DocCount      uint32
	DictOffset    int64
	DictSize      int64
	PostOffset    int64
	PostSize      int64
	CreatedAt     int64
	SchemaVersion uint16
	ShardKey      string
}

// DictEntry maps a term to its postings offset, length, and document frequency
// in the shard file.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// Info describes a written file.
type Info struct {
	Path      string
	Terms     int
	Docs      int
	SizeBytes int64
}

// Writer serialises term entries into shard files under one directory.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes files into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates name in the writer's directory. Postings are laid
// out in the order given; the dictionary is always sorted by term. The file
// is written to name+".tmp", fsynced and renamed into place.
func (w *Writer) Write(name, shardKey string, entries []index.TermEntry) (Info, error) {
	if len(entries) == 0 {
		return Info{}, fmt.Errorf("cannot write empty shard file %s", name)
	}
	finalPath := filepath.Join(w.dataDir, name)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return Info{}, fmt.Errorf("creating shard directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return Info{}, fmt.Errorf("creating temp shard file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	headerBytes := make([]byte, HeaderSize)
	if _, err := f.Write(headerBytes); err != nil {
		return Info{}, fmt.Errorf("writing header: %w", err)
	}

	postingsStart := int64(HeaderSize)
	offset := int64(0)
	postCRC := crc32.NewIEEE()
	dict := make([]DictEntry, 0, len(entries))
	docIDs := make(map[int]struct{})
	for _, entry := range entries {
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return Info{}, fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		if _, err := f.Write(postingsData); err != nil {
			return Info{}, fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		postCRC.Write(postingsData)
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: offset,
			PostLen:    len(postingsData),
			DocFreq:    len(entry.Postings),
		})
		offset += int64(len(postingsData))
		for docID := range entry.Postings {
			docIDs[docID] = struct{}{}
		}
	}
	postingsSize := offset
	dictStart := postingsStart + postingsSize

	sort.Slice(dict, func(i, j int) bool { return dict[i].Term < dict[j].Term })
	dictData, err := json.Marshal(dict)
	if err != nil {
		return Info{}, fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return Info{}, fmt.Errorf("writing dictionary: %w", err)
	}
	dictSize := int64(len(dictData))

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], postCRC.Sum32())
	binary.LittleEndian.PutUint64(footer[8:16], uint64(dictStart))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(dictSize))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(postingsSize))
	if _, err := f.Write(footer); err != nil {
		return Info{}, fmt.Errorf("writing footer: %w", err)
	}

	header := Header{
		Magic:         MagicBytes,
		Version:       FormatVersion,
		TermCount:     uint32(len(dict)),
		DocCount:      uint32(len(docIDs)),
		DictOffset:    dictStart,
		DictSize:      dictSize,
		PostOffset:    postingsStart,
		PostSize:      postingsSize,
		CreatedAt:     time.Now().Unix(),
		SchemaVersion: index.SchemaVersion,
		ShardKey:      shardKey,
	}
	encodeHeader(headerBytes, header)
	if _, err := f.WriteAt(headerBytes, 0); err != nil {
		return Info{}, fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return Info{}, fmt.Errorf("syncing shard file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Info{}, fmt.Errorf("closing shard file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return Info{}, fmt.Errorf("renaming shard file: %w", err)
	}
	return Info{
		Path:      finalPath,
		Terms:     len(dict),
		Docs:      len(docIDs),
		SizeBytes: int64(HeaderSize) + postingsSize + dictSize + int64(FooterSize),
	}, nil
}

func encodeHeader(b []byte, h Header) {
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint16(b[56:58], h.SchemaVersion)
	if len(h.ShardKey) == 1 {
		b[58] = h.ShardKey[0]
	}
	binary.LittleEndian.PutUint32(b[60:64], crc32.ChecksumIEEE(b[0:60]))
}

func decodeHeader(b []byte) Header {
	h := Header{
		Magic:         binary.LittleEndian.Uint32(b[0:4]),
		Version:       binary.LittleEndian.Uint32(b[4:8]),
		TermCount:     binary.LittleEndian.Uint32(b[8:12]),
		DocCount:      binary.LittleEndian.Uint32(b[12:16]),
		DictOffset:    int64(binary.LittleEndian.Uint64(b[16:24])),
		DictSize:      int64(binary.LittleEndian.Uint64(b[24:32])),
		PostOffset:    int64(binary.LittleEndian.Uint64(b[32:40])),
		PostSize:      int64(binary.LittleEndian.Uint64(b[40:48])),
		CreatedAt:     int64(binary.LittleEndian.Uint64(b[48:56])),
		SchemaVersion: binary.LittleEndian.Uint16(b[56:58]),
	}
	if b[58] != 0 {
		h.ShardKey = string(b[58])
	}
	return h
}
