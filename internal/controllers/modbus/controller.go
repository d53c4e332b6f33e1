package modbusctrl

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	mbserver "github.com/tbrandon/mbserver"

	"github.com/Agrid-Dev/vdizone/internal/ports"
)

// Register map.
//
//	coil 0              run in progress; writing ON starts the selected case
//	holding register 0  index of the selected case in the case list
//	input registers 0-4 final, min, max air temperature of the last run
//	                    (degC x TemperatureScale), unmet steps, run count
const (
	holdingRegisters = 1
	inputRegisters   = 5
)

// Config for the Modbus controller.
type Config struct {
	ZoneID string
	Addr   string
	UnitID byte // UnitID (Modbus slave/unit ID). Use an integer 1..247.

	Logger *slog.Logger
}

type Controller struct {
	svc ports.SimulationService
	cfg Config
	log *slog.Logger

	serv *mbserver.Server
}

func New(svc ports.SimulationService, cfg Config) (*Controller, error) {
	if cfg.UnitID == 0 {
		return nil, errors.New("modbus: UnitID is required (non-zero)")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:1502"
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{svc: svc, cfg: cfg, log: log.With("component", "modbus")}, nil
}

// Run starts the Modbus server and registers handlers that apply writes immediately and
// provide reads directly from the simulation service. It blocks until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	serv := mbserver.NewServer()
	c.serv = serv

	// Register handlers BEFORE starting the TCP listener to avoid races inside mbserver
	// between handler registration and the server's goroutines.
	// Read Coils (function 1) - run in progress.
	serv.RegisterFunctionHandler(1, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		data := frame.GetData()
		if len(data) < 4 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		start := binary.BigEndian.Uint16(data[0:2])
		qty := binary.BigEndian.Uint16(data[2:4])
		if qty == 0 || qty > 2000 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		// We only expose coil 0 (running)
		if start != 0 || qty != 1 {
			return []byte{}, &mbserver.IllegalDataAddress
		}
		coilByte := byte(0)
		if c.svc.Get().Running > 0 {
			coilByte = 0x01
		}
		// response: byte count (1) + coil bytes
		return []byte{1, coilByte}, &mbserver.Success
	})

	// Read Holding Registers (function 3) - selected case index.
	serv.RegisterFunctionHandler(3, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		start, qty, exc := readRange(frame.GetData(), holdingRegisters)
		if exc != nil {
			return []byte{}, exc
		}
		return encodeRegisters(c.holding()[start : start+qty]), &mbserver.Success
	})

	// Read Input Registers (function 4) - last run summary.
	serv.RegisterFunctionHandler(4, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		start, qty, exc := readRange(frame.GetData(), inputRegisters)
		if exc != nil {
			return []byte{}, exc
		}
		return encodeRegisters(c.inputs()[start : start+qty]), &mbserver.Success
	})

	// Write Single Coil (function 5) - start a run
	serv.RegisterFunctionHandler(5, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		data := frame.GetData()
		if len(data) < 4 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		addr := binary.BigEndian.Uint16(data[0:2])
		value := binary.BigEndian.Uint16(data[2:4])

		if addr != 0 {
			return []byte{}, &mbserver.IllegalDataAddress
		}

		switch value {
		case 0x0000:
			// runs cannot be interrupted; OFF is accepted and ignored
		case 0xFF00:
			if err := c.svc.Start(ctx, ""); err != nil {
				c.log.Warn("run rejected", "err", err)
				return []byte{}, &mbserver.SlaveDeviceFailure
			}
		default:
			return []byte{}, &mbserver.IllegalDataValue
		}

		// echo request (address + value)
		resp := make([]byte, 4)
		copy(resp, data[0:4])
		return resp, &mbserver.Success
	})

	// Write Single Register (function 6)
	serv.RegisterFunctionHandler(6, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		data := frame.GetData()
		if len(data) < 4 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		addr := binary.BigEndian.Uint16(data[0:2])
		value := binary.BigEndian.Uint16(data[2:4])

		if exc := c.writeHolding(int(addr), value); exc != nil {
			return []byte{}, exc
		}

		resp := make([]byte, 4)
		copy(resp, data[0:4])
		return resp, &mbserver.Success
	})

	// Write Multiple Registers (function 16)
	serv.RegisterFunctionHandler(16, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		d := frame.GetData()
		if len(d) < 5 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		start := binary.BigEndian.Uint16(d[0:2])
		quantity := binary.BigEndian.Uint16(d[2:4])
		byteCount := int(d[4])
		if byteCount != int(quantity)*2 || len(d) < 5+byteCount {
			return []byte{}, &mbserver.IllegalDataValue
		}
		for i := 0; i < int(quantity); i++ {
			val := binary.BigEndian.Uint16(d[5+i*2 : 5+i*2+2])
			if exc := c.writeHolding(int(start)+i, val); exc != nil {
				return []byte{}, exc
			}
		}

		resp := make([]byte, 4)
		binary.BigEndian.PutUint16(resp[0:2], start)
		binary.BigEndian.PutUint16(resp[2:4], quantity)
		return resp, &mbserver.Success
	})

	// Now start listening after all handlers are registered.
	if err := serv.ListenTCP(c.cfg.Addr); err != nil {
		return fmt.Errorf("mbserver listen tcp %s: %w", c.cfg.Addr, err)
	}
	c.log.Info("modbus listening", "addr", c.cfg.Addr, "unit_id", c.cfg.UnitID)

	// Block until ctx.Done()
	<-ctx.Done()
	serv.Close()
	return ctx.Err()
}

func (c *Controller) holding() []uint16 {
	snap := c.svc.Get()
	idx := slices.Index(snap.Cases, snap.Selected)
	return []uint16{clampCount(idx)}
}

func (c *Controller) inputs() []uint16 {
	snap := c.svc.Get()
	regs := make([]uint16, inputRegisters)
	if snap.Last != nil {
		regs[0] = encodeTemp(snap.Last.FinalAir)
		regs[1] = encodeTemp(snap.Last.MinAir)
		regs[2] = encodeTemp(snap.Last.MaxAir)
		regs[3] = clampCount(snap.Last.Unmet)
	}
	regs[4] = clampCount(snap.Runs)
	return regs
}

func (c *Controller) writeHolding(addr int, value uint16) *mbserver.Exception {
	if addr != 0 {
		return &mbserver.IllegalDataAddress
	}
	cases := c.svc.Cases()
	if int(value) >= len(cases) {
		return &mbserver.IllegalDataValue
	}
	if err := c.svc.Select(cases[value]); err != nil {
		return &mbserver.IllegalDataValue
	}
	return nil
}

// readRange validates a read request against a register bank of size n.
func readRange(data []byte, n int) (start, qty int, exc *mbserver.Exception) {
	if len(data) < 4 {
		return 0, 0, &mbserver.IllegalDataValue
	}
	start = int(binary.BigEndian.Uint16(data[0:2]))
	qty = int(binary.BigEndian.Uint16(data[2:4]))
	if qty == 0 || qty > 125 {
		return 0, 0, &mbserver.IllegalDataValue
	}
	if start+qty > n {
		return 0, 0, &mbserver.IllegalDataAddress
	}
	return start, qty, nil
}

// encodeRegisters builds the response: byte count + register bytes.
func encodeRegisters(regs []uint16) []byte {
	byteCount := len(regs) * 2
	resp := make([]byte, 1+byteCount)
	resp[0] = byte(byteCount)
	for i, r := range regs {
		binary.BigEndian.PutUint16(resp[1+i*2:1+i*2+2], r)
	}
	return resp
}

const TemperatureScale int = 100

func encodeTemp(v float64) uint16 {
	r := min(max(int(math.Round(v*float64(TemperatureScale))), math.MinInt16), math.MaxInt16)
	return uint16(int16(r))
}

func decodeTemp(u uint16) float64 {
	i := int16(u)
	return float64(i) / float64(TemperatureScale)
}

func clampCount(n int) uint16 {
	return uint16(min(max(n, 0), math.MaxUint16))
}
