// Package kestrelzkvm provides a zkVM continuation and composition
// pipeline: execute a guest program into bounded segments, prove each
// segment independently, fold the segment proofs into one constant-size
// succinct receipt, and optionally wrap that receipt in a Groth16 proof
// for on-chain verification.
//
// # Pipeline
//
// Execution splits a guest run into segments at a configurable cycle
// limit, each attested by a claim over its pre and post state digests.
// The prover seals every segment, the composition engine lifts and joins
// the seals up a balanced tree, and the verifier checks any receipt
// variant against its root of trust.
//
// # Quick Start
//
// Executing, proving and verifying a program:
//
//	zkvm, err := kestrelzkvm.New(kestrelzkvm.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	prog := kestrelzkvm.FibProgram(10)
//	result, err := zkvm.Execute(ctx, prog, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	receipt, err := zkvm.Prove(ctx, result)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := zkvm.Verify(receipt, prog.ImageID(), result.Journal); err != nil {
//		log.Fatal(err)
//	}
//
// Folding a session into one succinct receipt:
//
//	succinct, err := zkvm.Compress(ctx, receipt)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Guests can defer verification of other programs' claims as
// assumptions; resolving them later with real receipts keeps proving
// composable across programs.
package kestrelzkvm
