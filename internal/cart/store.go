package cart

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/storage"
	"github.com/jafarshop/storefront/pkg/errors"
)

// Namespace is the storage namespace cart snapshots are written under
const Namespace = "ecommerce-cart"

// snapshotVersion is bumped when CartState changes shape. Older snapshots
// are treated as absent.
const snapshotVersion = 1

// Catalog is the read side of the product catalog the cart needs.
// GetProduct returns *errors.ErrNotFound for removed products.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// Store holds one shopper's cart and writes it through to storage on every
// mutation. A mutation whose write fails leaves the cart as it was.
type Store struct {
	mu      sync.Mutex
	owner   string
	key     string
	kv      storage.Store
	catalog Catalog
	logger  *zap.Logger
	lines   []domain.CartLine
	now     func() time.Time
}

// NewStore creates the cart for owner and rehydrates it from kv. Missing or
// unreadable snapshots give an empty cart. catalog may be nil.
func NewStore(ctx context.Context, owner string, kv storage.Store, catalog Catalog, logger *zap.Logger) *Store {
	s := &Store{
		owner:   owner,
		key:     storage.Key(Namespace, owner),
		kv:      kv,
		catalog: catalog,
		logger:  logger.With(zap.String("cart_owner", owner)),
		now:     time.Now,
	}
	s.lines = s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) []domain.CartLine {
	data, err := s.kv.Get(ctx, s.key)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.logger.Warn("Failed to read cart snapshot, starting empty", zap.Error(err))
		return nil
	}

	var state domain.CartState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("Corrupt cart snapshot, starting empty", zap.Error(err))
		return nil
	}
	if !validSnapshot(state) {
		s.logger.Warn("Incompatible cart snapshot, starting empty", zap.Int("version", state.Version))
		return nil
	}
	return state.Lines
}

func validSnapshot(state domain.CartState) bool {
	if state.Version != snapshotVersion {
		return false
	}
	seen := make(map[string]struct{}, len(state.Lines))
	for _, l := range state.Lines {
		if l.ProductID == "" || l.Quantity < 1 || l.Quantity > l.Stock || l.Price.IsNegative() {
			return false
		}
		if _, dup := seen[l.ProductID]; dup {
			return false
		}
		seen[l.ProductID] = struct{}{}
	}
	return true
}

// save persists lines; callers commit them to s.lines only on success
func (s *Store) save(ctx context.Context, lines []domain.CartLine) error {
	if len(lines) == 0 {
		if err := s.kv.Delete(ctx, s.key); err != nil {
			return errors.Persistence("save cart", err)
		}
		return nil
	}

	data, err := json.Marshal(domain.CartState{
		Version:   snapshotVersion,
		Lines:     lines,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return errors.Persistence("encode cart", err)
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		return errors.Persistence("save cart", err)
	}
	return nil
}

func (s *Store) copyLines() []domain.CartLine {
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Store) indexOf(productID string) int {
	for i, l := range s.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// clamp saturates quantity into [1, stock]
func clamp(quantity, stock int) int {
	if quantity > stock {
		quantity = stock
	}
	if quantity < 1 {
		quantity = 1
	}
	return quantity
}

// Owner returns the shopper identity this cart belongs to
func (s *Store) Owner() string {
	return s.owner
}

// AddItem adds quantity units of product. An existing line is incremented.
// The resulting quantity silently saturates at the product's stock.
func (s *Store) AddItem(ctx context.Context, product *domain.Product, quantity int) error {
	if product == nil || product.ID == "" {
		return &errors.ErrValidation{Field: "product", Message: "product is required"}
	}
	if quantity < 1 {
		return &errors.ErrValidation{Field: "quantity", Message: "must be at least 1"}
	}
	if product.Stock < 1 {
		return &errors.ErrValidation{Field: "product", Message: "out of stock"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.copyLines()
	line := domain.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		Image:     product.Image,
		Price:     product.Price,
		Stock:     product.Stock,
	}

	if i := s.indexOf(product.ID); i >= 0 {
		line.AddedAt = lines[i].AddedAt
		line.Quantity = clamp(lines[i].Quantity+quantity, product.Stock)
		lines[i] = line
	} else {
		line.AddedAt = s.now().UTC()
		line.Quantity = clamp(quantity, product.Stock)
		lines = append(lines, line)
	}

	if err := s.save(ctx, lines); err != nil {
		return err
	}
	s.lines = lines
	return nil
}

// UpdateQuantity sets the quantity of an existing line, clamped into
// [1, stock]. It never removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return &errors.ErrNotFound{Resource: "cart line", ID: productID}
	}

	lines := s.copyLines()
	lines[i].Stock = s.currentStock(ctx, lines[i])
	lines[i].Quantity = clamp(quantity, lines[i].Stock)

	if err := s.save(ctx, lines); err != nil {
		return err
	}
	s.lines = lines
	return nil
}

// currentStock prefers live catalog stock and falls back to the captured
// value when the product is gone or sold out.
func (s *Store) currentStock(ctx context.Context, line domain.CartLine) int {
	if s.catalog == nil {
		return line.Stock
	}
	product, err := s.catalog.GetProduct(ctx, line.ProductID)
	if err != nil {
		var notFound *errors.ErrNotFound
		if !stderrors.As(err, &notFound) {
			s.logger.Warn("Catalog lookup failed, using captured stock",
				zap.String("product_id", line.ProductID), zap.Error(err))
		}
		return line.Stock
	}
	if product.Stock < 1 {
		return line.Stock
	}
	return product.Stock
}

// RemoveItem drops the line for productID. Removing a missing line is a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return nil
	}

	lines := make([]domain.CartLine, 0, len(s.lines)-1)
	lines = append(lines, s.lines[:i]...)
	lines = append(lines, s.lines[i+1:]...)

	if err := s.save(ctx, lines); err != nil {
		return err
	}
	s.lines = lines
	return nil
}

// Clear empties the cart
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(ctx, nil); err != nil {
		return err
	}
	s.lines = nil
	return nil
}

// RemoveOrdered takes the quantities in ordered out of the cart. Lines added
// or raised after ordered was read keep whatever exceeds the ordered amount.
func (s *Store) RemoveOrdered(ctx context.Context, ordered []domain.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[string]int, len(ordered))
	for _, l := range ordered {
		taken[l.ProductID] += l.Quantity
	}

	lines := make([]domain.CartLine, 0, len(s.lines))
	changed := false
	for _, l := range s.lines {
		n, ok := taken[l.ProductID]
		if !ok {
			lines = append(lines, l)
			continue
		}
		changed = true
		if l.Quantity > n {
			l.Quantity -= n
			lines = append(lines, l)
		}
	}
	if !changed {
		return nil
	}

	if err := s.save(ctx, lines); err != nil {
		return err
	}
	if len(lines) == 0 {
		lines = nil
	}
	s.lines = lines
	return nil
}

// Lines returns a copy of the lines in insertion order
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLines()
}

// Total is Σ price × quantity over captured prices, unrounded
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Subtotal(s.lines)
}

// ItemCount is the sum of quantities
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}

// Unavailable returns the product IDs of lines that can no longer be bought:
// the product was removed or deactivated, or its stock fell below the line
// quantity. Without a catalog every line is considered available.
func (s *Store) Unavailable(ctx context.Context) ([]string, error) {
	lines := s.Lines()
	if s.catalog == nil {
		return nil, nil
	}

	var ids []string
	for _, l := range lines {
		product, err := s.catalog.GetProduct(ctx, l.ProductID)
		if err != nil {
			var notFound *errors.ErrNotFound
			if stderrors.As(err, &notFound) {
				ids = append(ids, l.ProductID)
				continue
			}
			return nil, errors.Persistence("check cart availability", err)
		}
		if !product.IsActive || product.Stock < l.Quantity {
			ids = append(ids, l.ProductID)
		}
	}
	return ids, nil
}

// Subtotal sums price × quantity over lines
func Subtotal(lines []domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// FormatMoney rounds to currency precision for display
func FormatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
