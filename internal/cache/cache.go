package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Cache процессный TTL-кеш с коалесингом запросов.
// Для каждого ключа в полете находится не более одного вычисления;
// конкурентные вызовы GetOrCompute с тем же ключом ждут общий результат.
// Неудачное вычисление вытесняется, чтобы следующий вызов повторил его,
// а не получил отравленную запись.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry

	// подменяется в тестах
	now func() time.Time
}

type entry struct {
	value     any
	err       error
	expiresAt time.Time
	done      chan struct{} // закрыт, когда вычисление завершено
}

// New создает пустой кеш. Кеш не персистентен: после рестарта процесса
// состояние восстанавливается естественным образом в пределах одного TTL.
func New() *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Key собирает ключ кеша из частей: (вид ресурса, токен/пара, run id)
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Get возвращает живое закешированное значение
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	select {
	case <-e.done:
	default:
		// вычисление еще в полете
		return nil, false
	}
	if e.err != nil || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set кладет готовое значение с заданным TTL
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	e := &entry{
		value:     value,
		expiresAt: c.now().Add(ttl),
		done:      make(chan struct{}),
	}
	close(e.done)

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// GetOrCompute возвращает живое значение по ключу либо вычисляет его.
// Если вычисление для ключа уже в полете, вызов ждет его результат
// вместо запуска повторного. Ошибка вычисления возвращается всем
// ожидающим, а запись вытесняется.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (any, error)) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		select {
		case <-e.done:
			if e.err == nil && c.now().Before(e.expiresAt) {
				c.mu.Unlock()
				return e.value, nil
			}
			// протухло — вытесняем и вычисляем заново
			delete(c.entries, key)
		default:
			c.mu.Unlock()
			select {
			case <-e.done:
				if e.err != nil {
					return nil, e.err
				}
				return e.value, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	e := &entry{done: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	value, err := compute(ctx)

	c.mu.Lock()
	e.value = value
	e.err = err
	e.expiresAt = c.now().Add(ttl)
	if err != nil {
		// вытесняем только свою запись: Set мог положить свежее
		// значение по этому ключу, пока вычисление было в полете
		if cur, ok := c.entries[key]; ok && cur == e {
			delete(c.entries, key)
		}
	}
	close(e.done)
	c.mu.Unlock()

	return value, err
}

// Fetch типизированная обертка над GetOrCompute
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	value, err := c.GetOrCompute(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache: unexpected value type %T for key %q", value, key)
	}
	return typed, nil
}
