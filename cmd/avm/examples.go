package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/actorvm/vm"
	"github.com/chazu/actorvm/vm/image"
)

// Refs are assigned in command-line order, so "avm pong.avm ping.avm" makes
// pong #1 and ping #2.
const pongRef = 1

func exampleImages() []*image.Image {
	return []*image.Image{
		image.New("add", vm.Program{
			vm.LoadInt(vm.R1, 123),
			vm.Move(vm.R1, vm.R0),
			vm.Add(vm.R0, vm.R1, vm.R2),
			vm.Halt(),
		}),
		image.New("list", vm.Program{
			vm.MakeList(vm.R2, 10),
			vm.LoadInt(vm.R0, 1),
			vm.LoadInt(vm.R1, 5),
			vm.SetIndexed(vm.R2, vm.R0, vm.R1),
			vm.GetIndexed(vm.R2, vm.R0, vm.R3),
			vm.Halt(),
		}),
		pingImage(),
		pongImage(),
	}
}

// ping sends its own ref to pong three times and waits for each reply.
func pingImage() *image.Image {
	b := vm.NewBuilder()
	loop := b.NewLabel("loop")
	done := b.NewLabel("done")
	b.Emit(
		vm.LoadRef(vm.R0, pongRef),
		vm.LoadSelf(vm.R1),
		vm.LoadInt(vm.R2, 0),
		vm.LoadInt(vm.R3, 1),
		vm.LoadHeap(0, vm.R4),
	)
	b.Mark(loop)
	b.Emit(
		vm.Send(vm.R0, vm.R1),
		vm.Recv(vm.R5),
		vm.Add(vm.R2, vm.R3, vm.R2),
		vm.Eq(vm.R2, vm.R4),
	)
	b.JumpIfTrue(done)
	b.Jump(loop)
	b.Mark(done)
	b.Emit(vm.Halt())
	return image.New("ping", mustProgram(b), vm.FromInt(3))
}

// pong answers every message, which must be a ref, with the atom pong.
func pongImage() *image.Image {
	b := vm.NewBuilder()
	loop := b.NewLabel("loop")
	b.Emit(vm.LoadAtom(vm.R1, "pong"))
	b.Mark(loop)
	b.Emit(
		vm.Recv(vm.R0),
		vm.Send(vm.R0, vm.R1),
	)
	b.Jump(loop)
	return image.New("pong", mustProgram(b))
}

func mustProgram(b *vm.Builder) vm.Program {
	p, err := b.Program()
	if err != nil {
		panic(err)
	}
	return p
}

func writeExamples(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, img := range exampleImages() {
		path := filepath.Join(dir, img.Name+".avm")
		if err := image.WriteFile(path, img); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

func indent(s, prefix string) string {
	lines := strings.SplitAfter(s, "\n")
	var sb strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		sb.WriteString(prefix)
		sb.WriteString(l)
	}
	return sb.String()
}
