package core

import (
	"context"
	"fmt"
	"io"

	"skyctl/config"
)

// SetIPMode persists the console address.
type SetIPMode struct {
	Store    *config.IPStore
	IP       string
	Reporter Reporter
}

func (m *SetIPMode) Run(context.Context) error {
	ip, err := m.Store.Save(m.IP)
	if err != nil {
		return err
	}
	m.Reporter.Success(fmt.Sprintf("Saved %s to %s", ip, m.Store.Path))
	return nil
}

// ShowIPMode prints the persisted console address.
type ShowIPMode struct {
	Store  *config.IPStore
	Stdout io.Writer
}

func (m *ShowIPMode) Run(context.Context) error {
	ip, err := m.Store.Load()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(m.Stdout, ip)
	return err
}
