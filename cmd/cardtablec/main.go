package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mwynn/cardtable"
)

type args struct {
	url  string
	sid  string
	args []string
}

var cmds = map[string]func(*args){
	"signup": func(a *args) {
		if len(a.args) < 2 {
			fmt.Println("usage: cardtablec signup <username> <password>")
			return
		}

		err := post(a.url+"/api/users", "", cardtable.Login{
			ID:       a.args[0],
			Password: a.args[1],
		}, nil)
		if err != nil {
			panic(err)
		}
	},

	"login": func(a *args) {
		if len(a.args) < 2 {
			fmt.Println("usage: cardtablec login <username> <password>")
			return
		}

		sid := cardtable.SID{}
		err := post(a.url+"/api/login", "", cardtable.Login{
			ID:       a.args[0],
			Password: a.args[1],
		}, &sid)
		if err != nil {
			panic(err)
		}

		if err := os.WriteFile(".sid", []byte(sid.SID), os.FileMode(0600)); err != nil {
			panic(err)
		}
	},

	"users": func(a *args) {
		users := cardtable.UserList{}
		if err := get(a.url+"/api/users", a.sid, &users); err != nil {
			panic(err)
		}

		for _, user := range users.Users {
			fmt.Println(user)
		}
	},

	"cards": func(a *args) {
		cards := cardtable.CardList{}
		if err := get(a.url+"/current-user/cards", a.sid, &cards); err != nil {
			panic(err)
		}

		for _, c := range cards.Cards {
			owner := c.Owner
			if owner == "" {
				owner = "-"
			}
			fmt.Printf("%v\t(%v,%v)\tz=%v\trot=%v\tfaceUp=%v\towner=%v\t%v\n",
				c.ID, c.X, c.Y, c.Z, c.Rotation, c.FaceUp, owner, c.URL)
		}
	},

	"add": func(a *args) {
		if len(a.args) < 4 {
			fmt.Println("usage: cardtablec add <x> <y> <front> <back>")
			return
		}

		result := cardtable.CardID{}
		err := post(a.url+"/api/cards", a.sid, cardtable.NewCard{
			X:     atoi(a.args[0]),
			Y:     atoi(a.args[1]),
			Front: a.args[2],
			Back:  a.args[3],
		}, &result)
		if err != nil {
			panic(err)
		}

		fmt.Println(result.ID)
	},

	"grab": func(a *args) {
		submit(a, cardtable.Batch{Grabs: atois(a.args)})
	},

	"drop": func(a *args) {
		submit(a, cardtable.Batch{Drops: atois(a.args)})
	},

	"flip": func(a *args) {
		submit(a, cardtable.Batch{Flips: atois(a.args)})
	},

	"shuffle": func(a *args) {
		submit(a, cardtable.Batch{Shuffles: atois(a.args)})
	},

	"move": func(a *args) {
		if len(a.args) < 3 {
			fmt.Println("usage: cardtablec move <id> <x> <y>")
			return
		}

		x, y := atoi(a.args[1]), atoi(a.args[2])
		submit(a, cardtable.Batch{Updates: []cardtable.Patch{
			{ID: atoi(a.args[0]), X: &x, Y: &y},
		}})
	},

	"rotate": func(a *args) {
		if len(a.args) < 2 {
			fmt.Println("usage: cardtablec rotate <id> <degrees>")
			return
		}

		deg := atoi(a.args[1])
		submit(a, cardtable.Batch{Updates: []cardtable.Patch{
			{ID: atoi(a.args[0]), Rotation: &deg},
		}})
	},

	"watch": func(a *args) {
		if err := watch(a.url, a.sid); err != nil {
			panic(err)
		}
	},
}

func submit(a *args, batch cardtable.Batch) {
	result := cardtable.BatchResult{}
	if err := post(a.url+"/current-user/cards", a.sid, batch, &result); err != nil {
		panic(err)
	}
	fmt.Printf("success: %v\n", result.Success)
}

func atoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		panic(err)
	}
	return i
}

func atois(strs []string) []int {
	ints := []int{}
	for _, s := range strs {
		ints = append(ints, atoi(s))
	}
	return ints
}

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	cmd, ok := cmds[os.Args[1]]
	if !ok {
		usage()
		return
	}

	url := os.Getenv("CARDTABLE_URL")
	if url == "" {
		url = "http://localhost:8080"
	}

	sid := ""
	if bs, err := os.ReadFile(".sid"); err == nil {
		sid = string(bs)
	}

	cmd(&args{
		url:  url,
		sid:  sid,
		args: os.Args[2:],
	})
}

func usage() {
	fmt.Println("usage: cardtablec <command> [args...]")
	fmt.Println()
	fmt.Println("commands:")
	for cmd := range cmds {
		fmt.Println("  " + cmd)
	}
}
