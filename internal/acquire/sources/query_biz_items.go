package sources

const bizItemsQuery = `query bizItems($input: BizItemsParams) {
  bizItems(input: $input) {
    id
    businessId
    bizItemId
    bizItemType
    name
    stock
    price
    minBookingCount
    maxBookingCount
    isClosedBooking
    __typename
  }
}`
