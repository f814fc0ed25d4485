// Package telegram implements service.Telegram, grounded on the
// teacher's notification/telegram.go poller/menu setup, adapted from a
// ninjabot order controller to the trading engine's open/closed order
// model.
package telegram

import (
	"fmt"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/novalune/tradeengine/model"
	"github.com/novalune/tradeengine/orderbook"
	"github.com/novalune/tradeengine/service"
	"github.com/novalune/tradeengine/tools/log"
)

// Settings configures which Telegram users receive notifications.
type Settings struct {
	Token string
	Users []int64
}

type telegram struct {
	settings    Settings
	book        *orderbook.Book
	client      *tb.Bot
	defaultMenu *tb.ReplyMarkup
}

// New creates a Telegram notifier bound to book for /status and
// /profit queries. /balance is listed in the menu and command list, but
// no handler is registered for it.
func New(book *orderbook.Book, settings Settings) (service.Telegram, error) {
	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	poller := &tb.LongPoller{Timeout: 10 * time.Second}

	userMiddleware := tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			return false
		}
		for _, id := range settings.Users {
			if u.Message.Sender.ID == id {
				return true
			}
		}
		log.WithField("sender", u.Message.Sender.ID).Warn("telegram: rejected unauthorized sender")
		return false
	})

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Token,
		Poller:    userMiddleware,
	})
	if err != nil {
		return nil, err
	}

	statusBtn := menu.Text("/status")
	profitBtn := menu.Text("/profit")
	balanceBtn := menu.Text("/balance")
	menu.Reply(menu.Row(statusBtn, balanceBtn, profitBtn))

	err = client.SetCommands([]tb.Command{
		{Text: "/status", Description: "open positions"},
		{Text: "/balance", Description: "wallet balance"},
		{Text: "/profit", Description: "realized profit summary"},
	})
	if err != nil {
		return nil, err
	}

	bot := &telegram{settings: settings, book: book, client: client, defaultMenu: menu}
	client.Handle("/status", bot.statusHandle)
	client.Handle("/profit", bot.profitHandle)

	return bot, nil
}

func (t *telegram) Start() { go t.client.Start() }

func (t *telegram) Stop() { t.client.Stop() }

func (t *telegram) Notify(text string) {
	for _, id := range t.settings.Users {
		if _, err := t.client.Send(&tb.User{ID: id}, text); err != nil {
			log.Errorf("telegram: notify failed: %v", err)
		}
	}
}

func (t *telegram) OnOpenOrder(order model.OpenOrder) {
	t.Notify(fmt.Sprintf("Bought %s at %.8f, target %.8f", order.Asset, order.PriceBuy, order.PriceProfit))
}

func (t *telegram) OnClosedOrder(order model.ClosedOrder) {
	t.Notify(fmt.Sprintf("Sold %s at %.8f, profit %.2f", order.Asset, order.PriceSell, order.ProfitFiat))
}

func (t *telegram) OnError(err error) {
	t.Notify(fmt.Sprintf("Error: %v", err))
}

func (t *telegram) statusHandle(m *tb.Message) {
	open := t.book.OpenOrders()
	if len(open) == 0 {
		_, _ = t.client.Send(m.Sender, "No open positions.")
		return
	}

	text := fmt.Sprintf("%d open position(s):\n", len(open))
	for _, o := range open {
		text += o.String() + "\n"
	}
	_, _ = t.client.Send(m.Sender, text)
}

func (t *telegram) profitHandle(m *tb.Message) {
	closed := t.book.ClosedOrders()
	var total float64
	for _, c := range closed {
		total += c.ProfitFiat
	}
	_, _ = t.client.Send(m.Sender, fmt.Sprintf("Realized profit: %.2f across %d closed position(s)", total, len(closed)))
}
