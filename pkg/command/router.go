// Package command maps inbound chat commands to watch list and market data operations
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/format"
	"github.com/raykavin/dexwatch/pkg/logger"
	"github.com/raykavin/dexwatch/pkg/watchlist"
)

const (
	Start          = "start"
	Help           = "help"
	AddFavorite    = "addfavorite"
	RemoveFavorite = "removefavorite"
	ListFavorites  = "listfavorites"
)

// Request is an inbound message. Command is empty for free text.
type Request struct {
	Subscriber string
	Command    string
	Args       string
}

// Reply is the answer sent back to the chat the request came from
type Reply struct {
	Text   string
	Action *core.Action
}

// Command describes a registered command for help texts and bot menus
type Command struct {
	Name        string
	Usage       string
	Description string
}

type HandlerFunc func(ctx context.Context, req Request) (Reply, error)

// Favorites is the watch list surface used by the router
type Favorites interface {
	Add(subscriber, id string) (watchlist.AddStatus, error)
	Remove(subscriber, id string) (watchlist.RemoveStatus, error)
	List(subscriber string) ([]string, error)
}

type Router struct {
	favorites Favorites
	market    core.MarketData
	siteURL   string
	log       logger.Logger

	commands []Command
	handlers map[string]HandlerFunc
}

func NewRouter(favorites Favorites, market core.MarketData, siteURL string, log logger.Logger) *Router {
	router := &Router{
		favorites: favorites,
		market:    market,
		siteURL:   siteURL,
		log:       log,
	}

	router.commands = []Command{
		{Name: Start, Usage: "/start", Description: "Show the available commands"},
		{Name: Help, Usage: "/help", Description: "Show the available commands"},
		{Name: AddFavorite, Usage: "/addfavorite <pair_address>", Description: "Follow a pair"},
		{Name: ListFavorites, Usage: "/listfavorites", Description: "List followed pairs"},
		{Name: RemoveFavorite, Usage: "/removefavorite <pair_address>", Description: "Stop following a pair"},
	}

	router.handlers = map[string]HandlerFunc{
		Start:          router.help,
		Help:           router.help,
		AddFavorite:    router.addFavorite,
		RemoveFavorite: router.removeFavorite,
		ListFavorites:  router.listFavorites,
	}

	return router
}

// Commands returns the registered commands in menu order
func (r *Router) Commands() []Command {
	return r.commands
}

// Dispatch routes req to its handler, unknown commands fall back to the help text
// and free text is looked up on the market data provider
func (r *Router) Dispatch(ctx context.Context, req Request) Reply {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(req.Command), "/"))
	req.Args = strings.TrimSpace(req.Args)

	handler := r.lookup
	if name != "" {
		var ok bool
		if handler, ok = r.handlers[name]; !ok {
			handler = r.help
		}
	}

	reply, err := handler(ctx, req)
	if err != nil {
		r.log.WithError(err).WithFields(map[string]any{
			"subscriber": req.Subscriber,
			"command":    name,
		}).Error("command failed")
		return Reply{Text: failureText(err)}
	}

	return reply
}

func (r *Router) help(_ context.Context, _ Request) (Reply, error) {
	var sb strings.Builder
	sb.WriteString("Welcome! Available commands:\n")
	for _, command := range r.commands {
		if command.Name == Start {
			continue
		}
		fmt.Fprintf(&sb, "%s - %s\n", command.Usage, command.Description)
	}
	sb.WriteString("You can also send a ticker or token name to look up its price.")
	return Reply{Text: sb.String()}, nil
}

func (r *Router) addFavorite(_ context.Context, req Request) (Reply, error) {
	if req.Args == "" {
		return Reply{Text: "Send the pair address. Example: /addfavorite 0x123..."}, nil
	}

	status, err := r.favorites.Add(req.Subscriber, req.Args)
	if err != nil {
		return Reply{}, err
	}

	if status == watchlist.AlreadyPresent {
		return Reply{Text: "Pair is already in your favorites."}, nil
	}
	return Reply{Text: fmt.Sprintf("Pair %s added to your favorites.", req.Args)}, nil
}

func (r *Router) removeFavorite(_ context.Context, req Request) (Reply, error) {
	if req.Args == "" {
		return Reply{Text: "Send the pair address. Example: /removefavorite 0x123..."}, nil
	}

	status, err := r.favorites.Remove(req.Subscriber, req.Args)
	if err != nil {
		return Reply{}, err
	}

	if status == watchlist.NotFound {
		return Reply{Text: "Pair not found in your favorites."}, nil
	}
	return Reply{Text: fmt.Sprintf("Pair %s removed from your favorites.", req.Args)}, nil
}

func (r *Router) listFavorites(_ context.Context, req Request) (Reply, error) {
	ids, err := r.favorites.List(req.Subscriber)
	if err != nil {
		return Reply{}, err
	}

	if len(ids) == 0 {
		return Reply{Text: "You have no favorite pairs yet."}, nil
	}

	var sb strings.Builder
	sb.WriteString("Your favorite pairs:\n")
	for _, id := range ids {
		fmt.Fprintf(&sb, "- %s\n", id)
	}
	return Reply{Text: strings.TrimSuffix(sb.String(), "\n")}, nil
}

// lookup answers free text with the provider's best match
func (r *Router) lookup(ctx context.Context, req Request) (Reply, error) {
	query := strings.ToLower(req.Args)
	if query == "" {
		return r.help(ctx, req)
	}

	items, err := r.market.Search(ctx, query)
	if err != nil {
		return Reply{}, err
	}

	if len(items) == 0 {
		return Reply{Text: "Pair not found. Try again with a valid ticker or name."}, nil
	}

	best := items[0]
	return Reply{
		Text:   format.Lookup(best),
		Action: core.OpenAction(r.siteURL, best),
	}, nil
}

func failureText(err error) string {
	switch {
	case errors.Is(err, core.ErrRateLimited):
		return "The market data provider is busy, try again in a minute."
	case errors.Is(err, core.ErrTransient):
		return "The market data provider is unavailable, try again later."
	default:
		return "Something went wrong, try again later."
	}
}
