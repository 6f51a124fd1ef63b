package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/errors"
)

// Reader gives access to one shard file. The header and dictionary are
// validated on open; postings are read on demand.
type Reader struct {
	file     *os.File
	filePath string
	header   Header
	dict     []DictEntry
	postCRC  uint32
}

func corrupt(path, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", path, apperrors.ErrCorruptShard, fmt.Sprintf(format, args...))
}

// OpenReader opens path and validates its header, footer and dictionary.
// Structural damage is reported as ErrCorruptShard.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening shard file: %w", err)
	}
	r, err := openReader(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func openReader(f *os.File, path string) (*Reader, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat shard file: %w", err)
	}
	size := stat.Size()
	if size < int64(HeaderSize+FooterSize) {
		return nil, corrupt(path, "file too short (%d bytes)", size)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, corrupt(path, "reading header: %v", err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		return nil, corrupt(path, "bad magic bytes %x", magic)
	}
	if want := binary.LittleEndian.Uint32(headerBytes[60:64]); crc32.ChecksumIEEE(headerBytes[0:60]) != want {
		return nil, corrupt(path, "header checksum mismatch")
	}
	header := decodeHeader(headerBytes)
	if header.Version != FormatVersion {
		return nil, corrupt(path, "unsupported shard format version %d", header.Version)
	}
	if header.SchemaVersion != index.SchemaVersion {
		return nil, corrupt(path, "unsupported posting schema version %d", header.SchemaVersion)
	}
	if header.DictOffset+header.DictSize+int64(FooterSize) != size ||
		header.PostOffset+header.PostSize != header.DictOffset {
		return nil, corrupt(path, "region offsets do not match file size %d", size)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, size-int64(FooterSize)); err != nil {
		return nil, corrupt(path, "reading footer: %v", err)
	}
	if int64(binary.LittleEndian.Uint64(footer[8:16])) != header.DictOffset ||
		int64(binary.LittleEndian.Uint64(footer[16:24])) != header.DictSize ||
		int64(binary.LittleEndian.Uint64(footer[24:32])) != header.PostSize {
		return nil, corrupt(path, "footer disagrees with header")
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, corrupt(path, "reading dictionary: %v", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, corrupt(path, "dictionary checksum mismatch")
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, corrupt(path, "parsing dictionary: %v", err)
	}
	if len(dict) != int(header.TermCount) {
		return nil, corrupt(path, "dictionary has %d terms, header says %d", len(dict), header.TermCount)
	}
	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		postCRC:  binary.LittleEndian.Uint32(footer[4:8]),
	}, nil
}

// Search returns the postings of term, or nil if the shard does not hold it.
func (r *Reader) Search(term string) (index.PostingList, error) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Term != term {
		return nil, nil
	}
	entry := r.dict[idx]
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, corrupt(r.filePath, "parsing postings of %q: %v", term, err)
	}
	return postings, nil
}

// ReadAll loads the whole shard after verifying the postings checksum.
func (r *Reader) ReadAll() (index.Shard, error) {
	region := make([]byte, r.header.PostSize)
	if _, err := r.file.ReadAt(region, r.header.PostOffset); err != nil {
		return nil, corrupt(r.filePath, "reading postings region: %v", err)
	}
	if crc32.ChecksumIEEE(region) != r.postCRC {
		return nil, corrupt(r.filePath, "postings checksum mismatch")
	}
	s := make(index.Shard, len(r.dict))
	for _, entry := range r.dict {
		end := entry.PostOffset + int64(entry.PostLen)
		if entry.PostOffset < 0 || end > int64(len(region)) {
			return nil, corrupt(r.filePath, "postings of %q out of range", entry.Term)
		}
		var postings index.PostingList
		if err := json.Unmarshal(region[entry.PostOffset:end], &postings); err != nil {
			return nil, corrupt(r.filePath, "parsing postings of %q: %v", entry.Term, err)
		}
		s[entry.Term] = postings
	}
	return s, nil
}

// DocFreqs returns term → document frequency straight from the dictionary.
func (r *Reader) DocFreqs() map[string]int {
	out := make(map[string]int, len(r.dict))
	for _, entry := range r.dict {
		out[entry.Term] = entry.DocFreq
	}
	return out
}

// Terms returns the dictionary terms in sorted order.
func (r *Reader) Terms() []string {
	terms := make([]string, len(r.dict))
	for i, entry := range r.dict {
		terms[i] = entry.Term
	}
	return terms
}

func (r *Reader) TermCount() int {
	return len(r.dict)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

func (r *Reader) Header() Header {
	return r.header
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// Load opens path, reads the whole shard and closes the file.
func Load(path string) (index.Shard, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadAll()
}
