// Package errors provides coded, structured errors for vrender.
//
// Every failure the renderer surfaces to a host carries a stable code that
// maps to a registered template:
//
//   - protocol: the mutation stream is inconsistent (unknown node, stack
//     underflow, duplicate create, unknown op). Fatal for the batch.
//   - native: a DOM capability call was rejected. The instruction is skipped.
//   - decode: a native event could not be normalized. The event is dropped.
//   - config: the configuration file is invalid.
//   - transport: the engine connection failed.
//
// # Usage
//
//	err := errors.New("R001").
//	    WithOp("InsertBefore").
//	    WithNode(12).
//	    WithIndex(3).
//	    Wrap(registry.ErrUnknownNode)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR R001: Unknown node
//	//
//	//   instruction #3 InsertBefore, node 12
//	//
//	//   The mutation stream referenced a node id that is not registered.
//	//   ...
//
// Sentinel errors of the producing package stay reachable through
// errors.Is because RenderError implements Unwrap.
package errors
