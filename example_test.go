//go:build linux || darwin

package reactor_test

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-reactor"
)

func Example() {
	r, err := reactor.New()
	if err != nil {
		panic(err)
	}
	defer r.Close()

	var ticks int
	timer, err := r.AddMonotonic(time.Time{}, func(s *reactor.Source, deadline time.Time) error {
		ticks++
		fmt.Println("timer", ticks)
		if ticks == 3 {
			return s.Reactor().RequestQuit(7)
		}
		return nil
	})
	if err != nil {
		panic(err)
	}
	defer timer.Unref()
	if err := timer.SetPriority(1); err != nil {
		panic(err)
	}

	once, err := r.AddDefer(func(s *reactor.Source) error {
		fmt.Println("defer")
		return nil
	})
	if err != nil {
		panic(err)
	}
	defer once.Unref()
	if err := once.SetMute(reactor.MuteOneShot); err != nil {
		panic(err)
	}

	code, err := r.Loop()
	fmt.Println("code", code, err)

	//output:
	//defer
	//timer 1
	//timer 2
	//timer 3
	//code 7 <nil>
}

func ExampleReactor_Run() {
	r, err := reactor.New()
	if err != nil {
		panic(err)
	}
	defer r.Close()

	for _, p := range []int{2, 0, 1, 0} {
		s, err := r.AddDefer(func(s *reactor.Source) error {
			fmt.Printf("source %d (priority %d)\n", s.ID(), s.Priority())
			return nil
		})
		if err != nil {
			panic(err)
		}
		if err := s.SetPriority(p); err != nil {
			panic(err)
		}
		if err := s.SetMute(reactor.MuteOneShot); err != nil {
			panic(err)
		}
	}

	for {
		n, err := r.Run(0)
		if err != nil {
			panic(err)
		}
		if n == 0 {
			break
		}
		fmt.Println("batch of", n)
	}

	//output:
	//source 2 (priority 0)
	//source 4 (priority 0)
	//batch of 2
	//source 3 (priority 1)
	//batch of 1
	//source 1 (priority 2)
	//batch of 1
}
