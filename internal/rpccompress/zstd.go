// Package rpccompress registers a zstd grpc encoding.Compressor built on
// klauspost/compress/zstd, selectable via Config.GRPCCompression alongside
// grpc-go's built-in gzip codec. Grounded on spec.md §6's note that
// grpc_compression accepts none|gzip|brotli|zstd|deflate; brotli/deflate are
// not registered here since neither the teacher nor the rest of the example
// pack exercises a grpc codec for them; this package uses klauspost/compress
// only for zstd (gzip comes from grpc-go's own encoding/gzip).
package rpccompress

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc/encoding"
)

const Name = "zstd"

type compressor struct {
	encoderPool sync.Pool
	decoderPool sync.Pool
}

// Register installs the zstd codec under encoding.RegisterCompressor so a
// grpc.Server/ClientConn negotiating "zstd" compression can use it.
func Register() {
	c := &compressor{}
	c.encoderPool.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil)
		return enc
	}
	c.decoderPool.New = func() interface{} {
		dec, _ := zstd.NewReader(nil)
		return dec
	}
	encoding.RegisterCompressor(c)
}

func (c *compressor) Name() string { return Name }

func (c *compressor) Compress(w io.Writer) (io.WriteCloser, error) {
	enc := c.encoderPool.Get().(*zstd.Encoder)
	enc.Reset(w)
	return &pooledEncoder{Encoder: enc, pool: &c.encoderPool}, nil
}

func (c *compressor) Decompress(r io.Reader) (io.Reader, error) {
	dec := c.decoderPool.Get().(*zstd.Decoder)
	if err := dec.Reset(r); err != nil {
		return nil, err
	}
	return &pooledDecoder{Decoder: dec, pool: &c.decoderPool}, nil
}

type pooledEncoder struct {
	*zstd.Encoder
	pool *sync.Pool
}

func (e *pooledEncoder) Close() error {
	err := e.Encoder.Close()
	e.pool.Put(e.Encoder)
	return err
}

type pooledDecoder struct {
	*zstd.Decoder
	pool *sync.Pool
}

func (d *pooledDecoder) Read(p []byte) (int, error) {
	n, err := d.Decoder.Read(p)
	if err == io.EOF {
		d.pool.Put(d.Decoder)
	}
	return n, err
}
