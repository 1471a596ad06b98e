package storage

import (
	"io"
)

// NewProgressReader wraps r so every Read reports cumulative bytes to fn.
// If r is an io.ReadSeeker the result is too, so SDKs can rewind the body;
// seeking resets the count to the new offset. A backend that reads the
// body ahead of sending it reports that pass too, so backends avoid
// pre-reads where the SDK allows it.
func NewProgressReader(r io.Reader, total int64, fn ProgressFunc) io.Reader {
	if fn == nil {
		return r
	}
	pr := &progressReader{r: r, total: total, fn: fn}
	if rs, ok := r.(io.ReadSeeker); ok {
		return &progressReadSeeker{progressReader: pr, seeker: rs}
	}
	return pr
}

type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.fn(p.read, p.total)
	}
	return n, err
}

type progressReadSeeker struct {
	*progressReader
	seeker io.Seeker
}

func (p *progressReadSeeker) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.seeker.Seek(offset, whence)
	if err == nil {
		p.read = pos
	}
	return pos, err
}
