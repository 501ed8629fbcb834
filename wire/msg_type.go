package wire

import (
	"reflect"
	"strconv"

	"github.com/shreekarashastry/blocksim/chain"
)

// Kind is the tag carried in front of every encoded message.
type Kind uint8

const (
	InvTag Kind = iota
	GetHeadersTag
	HeadersTag
	GetBlocksTag
	BlockTag
	GetDataTag
	NoMessageTag
	ExtInvTag
	ExtGetHeadersTag
	ExtHeadersTag
	ExtGetBlocksTag
	ChunkTag
	ExtGetDataTag
)

var kindNames = [...]string{
	InvTag:           "INV",
	GetHeadersTag:    "GET_HEADERS",
	HeadersTag:       "HEADERS",
	GetBlocksTag:     "GET_BLOCKS",
	BlockTag:         "BLOCK",
	GetDataTag:       "GET_DATA",
	NoMessageTag:     "NO_MESSAGE",
	ExtInvTag:        "EXT_INV",
	ExtGetHeadersTag: "EXT_GET_HEADERS",
	ExtHeadersTag:    "EXT_HEADERS",
	ExtGetBlocksTag:  "EXT_GET_BLOCKS",
	ChunkTag:         "CHUNK",
	ExtGetDataTag:    "EXT_GET_DATA",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "KIND(" + strconv.Itoa(int(k)) + ")"
}

// Message is one of the protocol messages exchanged between nodes.
type Message interface {
	Kind() Kind
}

// Availability tells the receiver which chunks of a block the sender holds.
type Availability struct {
	FullBlock       bool  `codec:"fullBlock"`
	AvailableChunks []int `codec:"availableChunks"`
}

// ChunkKey identifies one chunk of a block, written "height/minerId/chunk".
type ChunkKey struct {
	Block chain.Key `codec:"block"`
	Chunk int       `codec:"chunk"`
}

func (c ChunkKey) String() string {
	return c.Block.String() + "/" + strconv.Itoa(c.Chunk)
}

type InvEntry struct {
	Key  chain.Key `codec:"hash"`
	Size int       `codec:"size"`
	Availability
}

type HeaderEntry struct {
	Header chain.Block `codec:"header"`
	Availability
}

type ChunkRequest struct {
	Chunk ChunkKey `codec:"chunk"`
	Availability
}

type ChunkData struct {
	Header chain.Block `codec:"header"`
	Chunk  int         `codec:"chunk"`
	Availability
	// RequestChunks lists chunks of the same block the sender wants back.
	RequestChunks []int `codec:"requestChunks"`
}

type Inv struct {
	Keys []chain.Key `codec:"inv"`
}

type GetHeaders struct {
	Keys []chain.Key `codec:"blocks"`
}

type Headers struct {
	Blocks []chain.Block `codec:"blocks"`
}

type GetData struct {
	Keys []chain.Key `codec:"blocks"`
}

type Block struct {
	Blocks     []chain.Block `codec:"blocks"`
	Compressed bool          `codec:"compressed"`
}

type ExtInv struct {
	Entries []InvEntry `codec:"inv"`
}

type ExtGetHeaders struct {
	Keys []chain.Key `codec:"blocks"`
}

type ExtHeaders struct {
	Entries []HeaderEntry `codec:"blocks"`
}

type ExtGetData struct {
	Chunks []ChunkRequest `codec:"chunks"`
}

type Chunk struct {
	Chunks []ChunkData `codec:"chunks"`
}

func (Inv) Kind() Kind           { return InvTag }
func (GetHeaders) Kind() Kind    { return GetHeadersTag }
func (Headers) Kind() Kind       { return HeadersTag }
func (GetData) Kind() Kind       { return GetDataTag }
func (Block) Kind() Kind         { return BlockTag }
func (ExtInv) Kind() Kind        { return ExtInvTag }
func (ExtGetHeaders) Kind() Kind { return ExtGetHeadersTag }
func (ExtHeaders) Kind() Kind    { return ExtHeadersTag }
func (ExtGetData) Kind() Kind    { return ExtGetDataTag }
func (Chunk) Kind() Kind         { return ChunkTag }

var inv Inv
var getHeaders GetHeaders
var headers Headers
var getData GetData
var block Block
var extInv ExtInv
var extGetHeaders ExtGetHeaders
var extHeaders ExtHeaders
var extGetData ExtGetData
var chunk Chunk

// reflectedTypesMap holds the decodable kinds. The reserved tags are absent
// and never decode.
var reflectedTypesMap = map[Kind]reflect.Type{
	InvTag:           reflect.TypeOf(inv),
	GetHeadersTag:    reflect.TypeOf(getHeaders),
	HeadersTag:       reflect.TypeOf(headers),
	GetDataTag:       reflect.TypeOf(getData),
	BlockTag:         reflect.TypeOf(block),
	ExtInvTag:        reflect.TypeOf(extInv),
	ExtGetHeadersTag: reflect.TypeOf(extGetHeaders),
	ExtHeadersTag:    reflect.TypeOf(extHeaders),
	ExtGetDataTag:    reflect.TypeOf(extGetData),
	ChunkTag:         reflect.TypeOf(chunk),
}
