// Package protocol implements the binary wire format spoken between a diffing
// engine and the vrender DOM renderer.
//
// Two streams cross the boundary:
//
//   - Mutations flow from the engine to the renderer. A Batch carries a
//     sequence number and an ordered list of Mutation instructions that
//     reference nodes by small integer NodeIDs and use an implicit operand
//     stack for multi-step edits.
//   - Events flow from the renderer back to the engine. Each Event is a
//     normalized synthetic event addressed to the NodeID whose registered
//     listener matched.
//
// # Wire Format
//
// Every message is wrapped in a frame:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (uvarint)                     │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// Integers are varints (protobuf style), signed integers use ZigZag, strings
// and byte slices are length-prefixed, floats are IEEE 754 big-endian.
//
// # Mutations
//
// A SetText mutation encodes as:
//
//	[Op: 0x0C][ID: uvarint][Text: len-prefixed]
//
// A batch is [Seq: uvarint][Count: uvarint][Mutation...].
//
// # Usage Example
//
//	batch := &Batch{
//	    Seq: 1,
//	    Mutations: []Mutation{
//	        NewPushRoot(0),
//	        NewCreateElement("div", 1),
//	        NewSetAttribute("class", Text("card"), 1, ""),
//	        NewAppendChildren(1),
//	    },
//	}
//	data := EncodeBatch(batch)
//
//	decoded, err := DecodeBatch(data)
//	if err != nil {
//	    // stream corruption
//	}
package protocol
