// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package console renders a match for a human player in a terminal.
package console

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"github.com/lorenzo-online/lorenzo/internal/coordinator"
	"github.com/lorenzo-online/lorenzo/internal/game"
)

// Presenter writes coordinator output to a terminal.
type Presenter struct {
	mu  sync.Mutex
	out io.Writer
}

var _ coordinator.Presenter = (*Presenter)(nil)

// New creates a presenter writing to out.
func New(out io.Writer) *Presenter {
	return &Presenter{out: out}
}

// NewLogger returns a logger that prints through pterm so log lines do not
// garble prompts.
func NewLogger(level slog.Level) *slog.Logger {
	l := pterm.DefaultLogger
	switch {
	case level <= slog.LevelDebug:
		l = *l.WithLevel(pterm.LogLevelDebug)
	case level <= slog.LevelInfo:
		l = *l.WithLevel(pterm.LogLevelInfo)
	case level <= slog.LevelWarn:
		l = *l.WithLevel(pterm.LogLevelWarn)
	default:
		l = *l.WithLevel(pterm.LogLevelError)
	}
	return slog.New(pterm.NewSlogHandler(&l))
}

func (p *Presenter) write(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.out, s)
}

// Prompt prints a question and its numbered choices.
func (p *Presenter) Prompt(question string, choices []string) {
	var b strings.Builder
	b.WriteString(pterm.LightCyan(question))
	b.WriteString("\n")
	for i, c := range choices {
		fmt.Fprintf(&b, "  %s %s\n", pterm.LightYellow(strconv.Itoa(i+1)+")"), c)
	}
	b.WriteString("> ")
	p.write(b.String())
}

// Info prints a message.
func (p *Presenter) Info(message string) {
	if message == "" {
		return
	}
	p.write(pterm.Info.Sprintln(message))
}

// Warn prints a message the player should act on.
func (p *Presenter) Warn(message string) {
	p.write(pterm.Warning.Sprintln(message))
}

// Board prints the board and every player's counters. self is highlighted.
func (p *Presenter) Board(s *game.Session, self string) {
	var b strings.Builder
	b.WriteString(pterm.DefaultSection.Sprintf("Period %d, round %d", s.Period, s.Round))
	b.WriteString(dice(s.Board.Dice))
	b.WriteString("\n")

	if towers, err := pterm.DefaultTable.WithHasHeader().WithData(towerTable(s.Board)).Srender(); err == nil {
		b.WriteString(towers)
		b.WriteString("\n")
	}
	b.WriteString(areas(s.Board))
	if players, err := pterm.DefaultTable.WithHasHeader().WithData(playerTable(s, self)).Srender(); err == nil {
		b.WriteString("\n")
		b.WriteString(players)
		b.WriteString("\n")
	}
	p.write(b.String())
}

// Standings prints the final ranking.
func (p *Presenter) Standings(standings []game.Standing) {
	data := pterm.TableData{{"Rank", "Player", "Score"}}
	for _, st := range standings {
		data = append(data, []string{strconv.Itoa(st.Rank), st.Player, strconv.Itoa(st.Score)})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return
	}
	p.write(pterm.DefaultSection.Sprint("Final standings") + table + "\n")
}

func dice(d game.Dice) string {
	if !d.Rolled {
		return "The dice have not been rolled yet.\n"
	}
	return fmt.Sprintf("Dice: black %d, white %d, orange %d\n", d.Black, d.White, d.Orange)
}

func towerTable(board game.Board) pterm.TableData {
	header := []string{"Floor"}
	floors := 0
	for _, t := range board.Towers {
		header = append(header, string(t.Type))
		floors = max(floors, len(t.Slots))
	}
	data := pterm.TableData{header}
	for f := range floors {
		row := []string{strconv.Itoa(f + 1)}
		for _, t := range board.Towers {
			row = append(row, slot(t, f))
		}
		data = append(data, row)
	}
	return data
}

func slot(t game.Tower, floor int) string {
	if floor >= len(t.Slots) {
		return ""
	}
	s := t.Slots[floor]
	card := "-"
	if s.Card != nil {
		card = s.Card.Name
	}
	text := fmt.Sprintf("%s (%d)", card, s.Force)
	if s.Occupant != nil {
		text += " " + occupant(*s.Occupant)
	}
	return text
}

func areas(board game.Board) string {
	var b strings.Builder
	work := func(name string, a game.WorkArea) {
		single := "free"
		if a.Single.Occupant != nil {
			single = occupant(*a.Single.Occupant)
		}
		fmt.Fprintf(&b, "%s: single %s, composite %d\n", name, single, len(a.Composite))
	}
	work("Harvest", board.Harvest)
	work("Production", board.Production)

	for i, m := range board.Market {
		taken := "free"
		if m.Occupant != nil {
			taken = occupant(*m.Occupant)
		}
		fmt.Fprintf(&b, "Market %d: %s, %s\n", i+1, m.Surplus, taken)
	}
	council := make([]string, len(board.Council))
	for i, o := range board.Council {
		council[i] = o.Player
	}
	fmt.Fprintf(&b, "Council: %s\n", strings.Join(council, ", "))
	return b.String()
}

func playerTable(s *game.Session, self string) pterm.TableData {
	data := pterm.TableData{{
		"Player", "Coins", "Wood", "Stone", "Servants", "Victory", "Military", "Faith", "Cards", "Members left",
	}}
	current := s.CurrentPlayer()
	for _, p := range s.Players {
		name := p.Username
		if name == current {
			name = "* " + name
		}
		if p.Username == self {
			name = pterm.LightGreen(name)
		}
		if p.Disabled {
			name += " (away)"
		}
		cards := 0
		for _, t := range game.CardTypes {
			cards += p.CardCount(t)
		}
		left := 0
		for _, m := range game.FamilyMembers {
			if !p.MemberUsed(m) {
				left++
			}
		}
		g := p.Goods
		data = append(data, []string{
			name,
			strconv.Itoa(g.Coins), strconv.Itoa(g.Wood), strconv.Itoa(g.Stone), strconv.Itoa(g.Servants),
			strconv.Itoa(g.Victory), strconv.Itoa(g.Military), strconv.Itoa(g.Faith),
			strconv.Itoa(cards), strconv.Itoa(left),
		})
	}
	return data
}

func occupant(o game.Occupant) string {
	return fmt.Sprintf("[%s/%s]", o.Player, o.Member)
}
