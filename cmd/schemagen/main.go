// Command schemagen emits a JSON Schema document describing the arena's
// wire protocol payloads, for client-side codegen or contract testing.
// It has no role in serving traffic; it is a build-time tool, grounded on
// the teacher's tools/effectsgen meta-codegen pattern but pointed at
// internal/netproto's payload types instead of the teacher's effect
// catalog.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/iancoleman/orderedmap"
	"github.com/invopop/jsonschema"

	"usion-arena/server/internal/netproto"
)

func main() {
	out := flag.String("out", "", "output file path (default: stdout)")
	flag.Parse()

	doc, err := build()
	if err != nil {
		log.Fatalf("schemagen: %v", err)
	}

	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Fatalf("schemagen: marshal document: %v", err)
	}

	if *out == "" {
		fmt.Println(string(encoded))
		return
	}
	if err := os.WriteFile(*out, encoded, 0o644); err != nil {
		log.Fatalf("schemagen: writing %s: %v", *out, err)
	}
}

// namedSchema pairs a payload's outbound/inbound message type with its
// reflected schema.
type namedSchema struct {
	messageType string
	value       any
}

// build reflects every netproto payload type into an ordered map keyed
// by wire message type, preserving declaration order so the emitted
// document reads top-to-bottom the way §6 of the protocol table does.
func build() (*orderedmap.OrderedMap, error) {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}

	entries := []namedSchema{
		{netproto.TypeJoin, netproto.Inbound{}},
		{netproto.TypeInput, netproto.InputPayload{}},
		{netproto.TypeJoined, netproto.JoinedPayload{}},
		{netproto.TypePlayerJoined, netproto.PlayerJoinedPayload{}},
		{netproto.TypePlayerLeft, netproto.PlayerLeftPayload{}},
		{netproto.TypeGameStart, netproto.GameStartPayload{}},
		{netproto.TypeStateSnapshot, netproto.StateSnapshotPayload{}},
		{netproto.TypeStateDelta, netproto.StateDeltaPayload{}},
		{netproto.TypePong, netproto.PongPayload{}},
		{netproto.TypeMatchEnd, netproto.MatchEndPayload{}},
		{netproto.TypeError, netproto.ErrorPayload{}},
	}

	doc := orderedmap.New()
	doc.Set("protocol_version", netproto.ProtocolVersion)

	messages := orderedmap.New()
	for _, entry := range entries {
		schema := reflector.Reflect(entry.value)
		messages.Set(entry.messageType, schema)
	}
	doc.Set("messages", messages)

	return doc, nil
}
