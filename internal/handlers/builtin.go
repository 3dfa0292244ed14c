package handlers

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/m3rciful/timebot/core/buildinfo"
	"github.com/m3rciful/timebot/core/dispatch"
	"github.com/m3rciful/timebot/core/telegram/format"
)

var jokes = []string{
	"Why don't programmers like nature? It has too many bugs! 🐛",
	"Why do programmers prefer dark mode? Because light attracts bugs! 💡",
	"How many programmers does it take to change a light bulb? None, that's a hardware problem! 💻",
	"Why did the developer go broke? Because he used up all his cache! 💰",
}

// Start greets the user.
func (h *Handlers) Start(ctx context.Context, req *dispatch.Request) error {
	return req.Send(ctx, "👋 Hello! I'm your personal time tracking bot.\n\n"+
		h.commandList()+
		"\nSend me any message and I'll echo it back!")
}

// Help lists the registered commands.
func (h *Handlers) Help(ctx context.Context, req *dispatch.Request) error {
	return req.Send(ctx, "🤖 Bot Commands:\n\n"+h.commandList()+"\n🎤 Voice messages are matched to these commands too.")
}

func (h *Handlers) commandList() string {
	if h.reg == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range h.reg.List(false) {
		if c.Hidden {
			continue
		}
		fmt.Fprintf(&b, "/%s - %s", c.Name, c.Description)
		if c.AdminOnly {
			b.WriteString(" (admin)")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Ping answers with a pong.
func (h *Handlers) Ping(ctx context.Context, req *dispatch.Request) error {
	return req.Send(ctx, "🏓 Pong! Bot is alive and responding.")
}

// Hello greets back.
func (h *Handlers) Hello(ctx context.Context, req *dispatch.Request) error {
	return req.Send(ctx, "👋 Hello! How can I help you today?")
}

// Time shows the current time in the configured zone.
func (h *Handlers) Time(ctx context.Context, req *dispatch.Request) error {
	return req.Send(ctx, "🕐 Current time: "+h.now().Format("2006-01-02 15:04:05"))
}

// Joke picks a random joke.
func (h *Handlers) Joke(ctx context.Context, req *dispatch.Request) error {
	return req.Send(ctx, jokes[h.d.Intn(len(jokes))])
}

// Test runs a small self check and reports its result.
func (h *Handlers) Test(ctx context.Context, req *dispatch.Request) error {
	if err := req.Send(ctx, "🧪 Running test script..."); err != nil {
		return err
	}
	return req.Send(ctx, fmt.Sprintf("🧪 Test Script Executed!\n\n"+
		"🎲 Lucky Number: %d\n"+
		"⏰ Execution Time: %s\n"+
		"🔢 Calculation Result: 42 × 2 = %d\n\n"+
		"✅ Script completed successfully!",
		h.d.Intn(100)+1, h.now().Format("15:04:05"), 42*2))
}

// Echo is the default handler for plain text.
func (h *Handlers) Echo(ctx context.Context, req *dispatch.Request) error {
	return req.Send(ctx, "You said: "+req.Text)
}

// Status reports process health.
func (h *Handlers) Status(ctx context.Context, req *dispatch.Request) error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	lines := []string{
		fmt.Sprintf("💻 Platform: %s/%s, %s", runtime.GOOS, runtime.GOARCH, runtime.Version()),
		fmt.Sprintf("🏷 Build: %s", buildinfo.Summary()),
		fmt.Sprintf("🔧 CPUs: %d, goroutines: %d", runtime.NumCPU(), runtime.NumGoroutine()),
		fmt.Sprintf("💾 Memory: %s heap, %s from OS", mib(ms.HeapAlloc), mib(ms.Sys)),
		fmt.Sprintf("⏱ Uptime: %s", uptime(h.d.Now().Sub(h.d.Started))),
	}
	if h.d.QueueStats != nil {
		st := h.d.QueueStats()
		lines = append(lines, fmt.Sprintf("📤 Sender: %d sent, %d failed, %d pending", st.Sent, st.Failed, st.Pending))
	}
	var b strings.Builder
	b.WriteString("📊 " + format.Bold("System Status") + "\n\n")
	for _, l := range lines {
		b.WriteString(format.V2(l) + "\n")
	}
	b.WriteString("\n" + format.V2("✅ All systems operational"))
	return req.SendMD(ctx, b.String())
}

func mib(n uint64) string {
	return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
}

func uptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	mins := int(d % time.Hour / time.Minute)
	return fmt.Sprintf("%d days, %d hours, %d minutes", days, hours, mins)
}
