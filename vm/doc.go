// This file is part of ngaro - https://github.com/db47h/ngaro
//
// Copyright 2016 Denis Bernard <db047h@gmail.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vm implements the arsenalVM bytecode interpreter: a 16-register,
// stack-and-flags virtual machine with a table-driven, width-polymorphic
// instruction set and a small syscall table.
//
// A Machine owns an immutable-but-self-modifiable code image and the two
// dispatch tables (opcodes and syscalls) built once at construction. Each
// call to Run or Spawn starts an independent Thread — its own register
// file, ALU flags byte, and auto-growing byte stack — against that shared
// image. Threads are plain goroutines; the dispatcher gives up no
// cooperative yield points of its own, so a hot loop only ever surrenders
// the processor the way any tight Go loop does.
//
// Every bytecode-visible address is a plain uint64 offset into one flat
// space rooted at byte 0 of the code image (see memory.go); there is no
// host pointer exposed to the program, which is how this package avoids
// the unsafe pointer arithmetic the instruction set's address-as-offset
// convention would otherwise require.
//
// Concurrent writes to the image carry no ordering guarantees by design:
// aliasing writes from different threads race exactly as the instruction
// set allows. This package only promises that such races stay memory
// safe, never that they stay coherent.
//
// TODO:
//	- disassembler for self-modified images (currently assembly-only)
//	- symbolic stack traces on RuntimeError
package vm
